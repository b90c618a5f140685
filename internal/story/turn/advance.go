package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/view"
)

// AdvanceDialogue asks the backend for the next turn and renders it.
func (o *Orchestrator) AdvanceDialogue(ctx context.Context) (*story.TurnPayload, error) {
	var sess backend.Session
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if s.advancing {
			return ErrBusy
		}
		s.advancing = true
		sess = s.Session()
		return nil
	})
	if err != nil {
		return nil, err
	}

	p, err := o.backend.NextDialogue(ctx, sess)
	if err != nil {
		o.release(func(s *State) { s.advancing = false })
		logrus.WithError(err).Warn("Next dialogue request failed")
		o.notify(view.LevelError, fmt.Sprintf("Could not load the next dialogue: %v", err))
		return nil, fmt.Errorf("failed to advance dialogue: %w", err)
	}

	o.applyTurn(p)
	return p, nil
}

// applyTurn classifies a turn payload and makes it the active turn.
func (o *Orchestrator) applyTurn(p *story.TurnPayload) {
	kind := story.Classify(p)
	entry := logrus.WithFields(logrus.Fields{"kind": kind, "type": p.Type})

	switch kind {
	case story.KindError:
		o.release(clearTurnFlight)
		msg := lo.CoalesceOrEmpty(p.Message, p.Error)
		entry.WithField("message", msg).Warn("Backend reported a turn error")
		o.notify(view.LevelError, msg)
		return
	case story.KindUnknown:
		o.release(clearTurnFlight)
		entry.Warn("Ignoring unclassifiable turn")
		return
	}

	_ = o.update(func(s *State) error {
		s.advancing = false
		s.submitting = false

		if p.CurrentDialogue != nil {
			s.DialogueIndex = *p.CurrentDialogue
		}
		if p.TotalDialogues != nil {
			s.TotalDialogues = *p.TotalDialogues
		}
		s.LastTurn = p
		s.resetTurn()
		s.HoldForAudio = p.AudioGenerating
		s.SceneComplete = kind == story.KindSceneComplete ||
			(p.IsSceneComplete != nil && *p.IsSceneComplete)
		if p.IsStoryComplete != nil && *p.IsStoryComplete {
			s.StoryComplete = true
		}
		if kind == story.KindWordFill {
			s.CurrentWordsInDialogue = cloneStrings(p.WordsInDialogue)
		}
		s.sortTargets(p.Text + " " + p.Prompt)
		s.Restored = false

		o.installController(p, kind)
		o.prompt = nil
		return nil
	})

	entry.Debug("Turn applied")
	o.view.HidePronunciationPrompt()
	o.renderTurn()
	if p.AudioGenerating {
		o.view.ShowAudioStatus(view.AudioStatus{Generating: true, Task: p.Character})
	}
}

// NextScene moves the story to its next scene, or marks it complete.
func (o *Orchestrator) NextScene(ctx context.Context) error {
	var sess backend.Session
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if s.sceneAdvancing {
			return ErrBusy
		}
		s.sceneAdvancing = true
		sess = s.Session()
		return nil
	})
	if err != nil {
		return err
	}

	resp, err := o.backend.NextScene(ctx, sess)
	if err != nil {
		o.release(func(s *State) { s.sceneAdvancing = false })
		o.notify(view.LevelError, fmt.Sprintf("Could not move to the next scene: %v", err))
		return fmt.Errorf("failed to advance scene: %w", err)
	}
	if !resp.Success {
		o.release(func(s *State) { s.sceneAdvancing = false })
		msg := lo.CoalesceOrEmpty(resp.Message, "Could not move to the next scene")
		o.notify(view.LevelError, msg)
		return fmt.Errorf("%w: %s", backend.ErrRequestFailed, msg)
	}

	if strings.Contains(strings.ToLower(resp.Message), "completed") {
		_ = o.update(func(s *State) error {
			s.sceneAdvancing = false
			s.StoryComplete = true
			return nil
		})
		logrus.WithField("story_id", sess.StoryID).Info("Story completed")
		o.notify(view.LevelSuccess, "🎉 Story completed!")
		return nil
	}

	_ = o.update(func(s *State) error {
		s.sceneAdvancing = false
		if resp.CurrentScene != nil {
			s.Scene = *resp.CurrentScene
			s.TotalDialogues = len(resp.CurrentScene.DialogueTemplates)
		}
		s.DialogueIndex = 0
		s.SceneComplete = false
		s.LastTurn = nil
		s.HoldForAudio = false
		s.resetTurn()

		o.installController(nil, story.KindUnknown)
		o.prompt = nil
		return nil
	})

	o.view.HidePronunciationPrompt()
	o.renderTurn()
	o.notify(view.LevelSuccess, "Moved to next scene!")

	if o.refresher != nil {
		if err := o.refresher.RequestStoryUpdate(); err != nil {
			logrus.WithError(err).Debug("Story refresh after scene change not sent")
		}
	}
	return nil
}

func clearTurnFlight(s *State) {
	s.advancing = false
	s.submitting = false
}
