package turn

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/view"
)

// OnServerPush merges a story_state_update. Only fields present in the push
// are applied and the latest push wins.
func (o *Orchestrator) OnServerPush(u story.StoryUpdate) {
	entry := logrus.WithFields(logrus.Fields{
		"story_id":    u.StoryID,
		"received_at": time.Now().Format(time.RFC3339Nano),
	})

	var state State
	err := o.update(func(s *State) error {
		if !s.Active || (u.StoryID != "" && u.StoryID != s.StoryID) {
			return ErrNoSession
		}
		if u.CurrentScene != nil {
			s.Scene = *u.CurrentScene
		}
		if u.CurrentDialogue != nil {
			s.DialogueIndex = *u.CurrentDialogue
		}
		if u.TotalDialogues != nil {
			s.TotalDialogues = *u.TotalDialogues
		}
		if u.IsSceneComplete != nil {
			s.SceneComplete = *u.IsSceneComplete
		}
		if u.IsStoryComplete != nil && *u.IsStoryComplete {
			s.StoryComplete = true
		}

		generating, task := u.AudioGenerating, u.CurrentAudioTask
		if info := u.StoryInfo; info != nil {
			if len(info.TargetWords) > 0 {
				s.OriginalTargetWords = cloneStrings(info.TargetWords)
				s.TargetWords = cloneStrings(info.TargetWords)
				if s.LastTurn != nil {
					s.sortTargets(s.LastTurn.Text + " " + s.LastTurn.Prompt)
				}
			}
			if info.TargetSounds != nil {
				s.TargetSounds = soundsFromThemes(info.TargetSounds)
			}
			if info.AudioGenerating != nil {
				generating = info.AudioGenerating
			}
			if info.CurrentAudioTask != nil {
				task = info.CurrentAudioTask
			}
		}
		if generating != nil {
			setAudio(s, *generating)
		}
		if task != nil {
			s.CurrentAudioTask = *task
		}
		s.Restored = false
		state = s.clone()
		return nil
	})
	if err != nil {
		entry.Debug("Ignoring push for another story")
		return
	}

	entry.WithField("dialogue", state.DialogueIndex).Debug("Story update merged")
	o.renderSidebar(state)
	o.renderAudio()
}

// OnAudioStatus is the authoritative audio generation signal.
func (o *Orchestrator) OnAudioStatus(st story.AudioStatus) {
	logrus.WithFields(logrus.Fields{
		"generating":  st.AudioGenerating,
		"task":        st.CurrentAudioTask,
		"received_at": time.Now().Format(time.RFC3339Nano),
	}).Debug("Audio status received")

	err := o.update(func(s *State) error {
		if st.StoryID != "" && s.StoryID != "" && st.StoryID != s.StoryID {
			return ErrNoSession
		}
		setAudio(s, st.AudioGenerating)
		s.CurrentAudioTask = st.CurrentAudioTask
		return nil
	})
	if err == nil {
		o.renderAudio()
	}
}

func setAudio(s *State, generating bool) {
	s.AudioGenerating = generating
	if !generating {
		s.HoldForAudio = false
	}
}

// PlayAudio plays a clip announced by the backend. Failures are reported
// and never block the turn.
func (o *Orchestrator) PlayAudio(ctx context.Context, url string, kind story.AudioKind) error {
	if url == "" || o.player == nil {
		return nil
	}
	resolved := o.backend.ResolveURL(url)
	entry := logrus.WithFields(logrus.Fields{"url": resolved, "kind": kind})

	if err := o.player.Play(ctx, resolved); err != nil {
		entry.WithError(err).Warn("Audio playback failed")
		o.notify(view.LevelWarning, "Could not play audio.")
		o.renderAudio()
		return err
	}
	entry.Debug("Playing audio")
	o.renderAudio()
	return nil
}

// The methods below adapt the orchestrator to realtime.Handler.

func (o *Orchestrator) OnStoryUpdate(u story.StoryUpdate) {
	o.OnServerPush(u)
}

func (o *Orchestrator) OnAudioReady(kind story.AudioKind, ready story.AudioReady) {
	_ = o.PlayAudio(context.Background(), ready.AudioURL, kind)
}

func (o *Orchestrator) OnChannelError(message string) {
	logrus.WithField("message", message).Warn("Realtime channel reported an error")
	if message != "" {
		o.notify(view.LevelWarning, message)
	}
}
