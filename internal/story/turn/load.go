package turn

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/view"
)

// RestoreFromSnapshot seeds the state from a persisted snapshot so something
// can be drawn before LoadState answers. Nothing here is authoritative.
func (o *Orchestrator) RestoreFromSnapshot(snap snapshot.Snapshot) {
	_ = o.update(func(s *State) error {
		if o.ctrl != nil {
			o.ctrl.Close()
			o.ctrl = nil
		}
		o.prompt = nil
		*s = State{
			UserID:                 snap.UserID,
			StoryID:                snap.StoryID,
			Mode:                   story.ParseMode(snap.StoryMode.String()),
			Active:                 true,
			Restored:               true,
			Scene:                  story.Scene{ID: snap.SceneID},
			DialogueIndex:          snap.DialogueID,
			TotalDialogues:         snap.TotalDialogues,
			Destination:            snap.Destination,
			CurrentWordsInDialogue: cloneStrings(snap.CurrentWordsInDialogue),
			PronouncedWords:        cloneStrings(snap.PronouncedWords),
		}
		return nil
	})
	logrus.WithFields(logrus.Fields{
		"story_id": snap.StoryID,
		"dialogue": snap.DialogueID,
	}).Debug("Restored story snapshot")
}

// LoadState fetches the authoritative state and replaces the local one.
// ErrSessionNotFound means the caller should go back to story selection.
func (o *Orchestrator) LoadState(ctx context.Context, userID, storyID string, mode story.Mode) error {
	sess := backend.Session{UserID: userID, StoryID: storyID, Mode: mode}
	resp, err := o.backend.State(ctx, sess)
	if err != nil {
		if errors.Is(err, backend.ErrSessionNotFound) {
			if o.persister != nil {
				o.persister.ClearSnapshot(ctx)
			}
			_ = o.update(func(s *State) error {
				*s = State{}
				return nil
			})
			o.notify(view.LevelWarning, "Story session not found. Please choose a story again.")
			return err
		}
		o.notify(view.LevelError, fmt.Sprintf("Could not load the story: %v", err))
		return fmt.Errorf("failed to load story state: %w", err)
	}

	info := resp.StoryInfo
	turn := info.CurrentTurn
	if turn != nil {
		if turn.Image == "" {
			turn.Image = resp.Image
		}
		if len(turn.BtnWords) == 0 {
			turn.BtnWords = resp.BtnWords
		}
		if len(turn.BtnImage) == 0 {
			turn.BtnImage = resp.BtnImage
		}
	}

	_ = o.update(func(s *State) error {
		prev := *s
		restored := prev.Active && prev.StoryID == storyID && prev.UserID == userID

		*s = State{
			UserID:              userID,
			StoryID:             storyID,
			Mode:                mode,
			Active:              true,
			Scene:               story.Scene{ID: info.CurrentSceneID},
			DialogueIndex:       info.CurrentDialogue,
			TotalDialogues:      info.TotalDialoguesInScene,
			LastTurn:            turn,
			OriginalTargetWords: cloneStrings(info.TargetWords),
			TargetWords:         cloneStrings(info.TargetWords),
			TargetSounds:        soundsFromThemes(info.TargetSounds),
			AudioGenerating:     info.AudioGenerating,
			CurrentAudioTask:    info.CurrentAudioTask,
			Destination:         info.SelectedDestination,
			StoryComplete:       info.StoryCompleted,
		}
		if prev.Scene.ID == info.CurrentSceneID && len(prev.Scene.DialogueTemplates) > 0 {
			s.Scene.DialogueTemplates = prev.Scene.DialogueTemplates
		}
		if s.Destination == "" && restored {
			s.Destination = prev.Destination
		}

		kind := story.Classify(turn)
		s.SceneComplete = kind == story.KindSceneComplete
		if kind == story.KindWordFill {
			s.CurrentWordsInDialogue = cloneStrings(turn.WordsInDialogue)
			if restored && slices.Equal(prev.CurrentWordsInDialogue, turn.WordsInDialogue) {
				s.PronouncedWords = cloneStrings(prev.PronouncedWords)
			}
		}
		if turn != nil {
			s.sortTargets(turn.Text)
		}
		o.installController(turn, kind)
		o.prompt = nil
		return nil
	})

	o.view.HidePronunciationPrompt()
	o.renderTurn()
	o.renderAudio()
	logrus.WithFields(logrus.Fields{
		"story_id": storyID,
		"mode":     mode,
		"dialogue": info.CurrentDialogue,
		"total":    info.TotalDialoguesInScene,
	}).Info("Story state loaded")
	return nil
}

// soundsFromThemes turns theme names like words_with_s_initial into "s".
func soundsFromThemes(themes []string) []string {
	return lo.FilterMap(themes, func(t string, _ int) (string, bool) {
		if s := view.SoundFromTheme(t); s != "" {
			return s, true
		}
		return t, t != ""
	})
}
