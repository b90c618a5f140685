package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/interaction"
	"storytalk/internal/story/view"
)

// RequestPronunciation opens a prompt asking the user to say p.Sentence.
// A newer prompt replaces an open one.
func (o *Orchestrator) RequestPronunciation(p interaction.Pronunciation) {
	_ = o.update(func(s *State) error {
		o.prompt = &p
		return nil
	})
	o.view.ShowPronunciationPrompt(p.Sentence)
}

// Prompt returns the sentence of the open pronunciation prompt.
func (o *Orchestrator) Prompt() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.prompt == nil {
		return "", false
	}
	return o.prompt.Sentence, true
}

// CancelPronunciation closes the open prompt and lets its owner undo
// whatever opened it.
func (o *Orchestrator) CancelPronunciation() {
	var cancelled *interaction.Pronunciation
	_ = o.update(func(s *State) error {
		cancelled = o.prompt
		o.prompt = nil
		return nil
	})
	o.view.HidePronunciationPrompt()
	if cancelled != nil && cancelled.OnCancelled != nil {
		cancelled.OnCancelled()
	}
}

// ConfirmPronunciation sends what the user said for the open prompt. An empty
// transcript means the prompt sentence itself.
func (o *Orchestrator) ConfirmPronunciation(ctx context.Context, transcript string) error {
	var (
		sess   backend.Session
		prompt interaction.Pronunciation
	)
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if o.prompt == nil {
			return ErrNoPrompt
		}
		if s.submitting {
			return ErrBusy
		}
		s.submitting = true
		sess = s.Session()
		prompt = *o.prompt
		return nil
	})
	if err != nil {
		return err
	}

	text := lo.CoalesceOrEmpty(strings.TrimSpace(transcript), prompt.Sentence)
	resp, err := o.backend.SubmitInput(ctx, sess, backend.Input{
		Text:            text,
		SidebarPractice: prompt.SidebarPractice,
	})
	if err != nil {
		o.release(func(s *State) { s.submitting = false })
		logrus.WithError(err).Warn("Pronunciation confirmation failed")
		o.notify(view.LevelError, fmt.Sprintf("Could not check your pronunciation: %v", err))
		return fmt.Errorf("failed to confirm pronunciation: %w", err)
	}

	if !resp.Success {
		o.release(func(s *State) { s.submitting = false })
		if resp.RetryRequired && len(resp.MissingWords) > 0 {
			o.notify(view.LevelWarning, fmt.Sprintf(
				"Please include these words in your response: %s. Try again!",
				strings.Join(resp.MissingWords, ", ")))
			return nil
		}
		msg := lo.CoalesceOrEmpty(resp.Message, "Pronunciation was not accepted")
		o.notify(view.LevelError, msg)
		return fmt.Errorf("%w: %s", backend.ErrRequestFailed, msg)
	}

	_ = o.update(func(s *State) error {
		s.submitting = false
		s.PendingInput = ""
		if o.prompt != nil && o.prompt.Sentence == prompt.Sentence {
			o.prompt = nil
		}
		return nil
	})
	o.view.HidePronunciationPrompt()
	o.view.SetInput("")

	if prompt.SidebarPractice {
		o.notify(view.LevelSuccess, "🎯 Target word practice completed!")
		return nil
	}

	if resp.NextDialogue != nil {
		o.applyTurn(resp.NextDialogue)
	}
	if prompt.OnConfirmed != nil {
		if err := prompt.OnConfirmed(ctx); err != nil {
			logrus.WithError(err).Warn("Pronunciation follow-up failed")
			o.notify(view.LevelError, fmt.Sprintf("Could not save your choice: %v", err))
			return err
		}
	}
	return nil
}

// PracticeWord opens a sidebar practice prompt for a target word.
func (o *Orchestrator) PracticeWord(word string) error {
	if !o.Snapshot().Active {
		return ErrNoSession
	}
	o.RequestPronunciation(interaction.Pronunciation{
		Sentence:        view.CleanWord(word),
		SidebarPractice: true,
	})
	return nil
}

// ClickTargetWord emphasises a target word, shows its mouth shape and asks
// the backend to pronounce it.
func (o *Orchestrator) ClickTargetWord(ctx context.Context, word string) error {
	word = view.CleanWord(word)
	sound := view.FirstSound(word)

	var (
		sess  backend.Session
		state State
	)
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		s.TargetWords = view.MoveToFront(s.TargetWords, word)
		s.ActiveSound = sound
		sess = s.Session()
		state = s.clone()
		return nil
	})
	if err != nil {
		return err
	}
	o.renderSidebar(state)

	if err := o.backend.PronounceWord(ctx, sess, word, sound); err != nil {
		logrus.WithError(err).WithField("word", word).Warn("Pronounce request failed")
		o.notify(view.LevelError, fmt.Sprintf("Could not pronounce %q: %v", word, err))
		return err
	}
	o.notify(view.LevelInfo, fmt.Sprintf("🔊 %q Pronouncing...", word))
	return nil
}

// DescribeSound has the backend read out how to produce sound, or its
// gesture hint when gesture is set.
func (o *Orchestrator) DescribeSound(ctx context.Context, sound string, gesture bool) error {
	d, ok := view.SoundDescription(sound)
	if !ok {
		return fmt.Errorf("no description for sound %q", sound)
	}
	text := d.Description
	if gesture {
		text = d.Gesture
	}

	sess := o.Session()
	if err := o.backend.PlaySoundDescription(ctx, sess, text); err != nil {
		o.notify(view.LevelError, fmt.Sprintf("Could not play the description: %v", err))
		return err
	}
	return nil
}

// ExploreEmpty is a click on empty space during a click interaction.
func (o *Orchestrator) ExploreEmpty(ctx context.Context) error {
	ctrl := o.Interaction()
	if ctrl == nil {
		return interaction.ErrNotExploration
	}
	return ctrl.ClickEmpty(ctx)
}

// ClickItem forwards a click on an interaction element.
func (o *Orchestrator) ClickItem(ctx context.Context, word string) error {
	ctrl := o.Interaction()
	if ctrl == nil {
		return fmt.Errorf("%w: no interaction is active", interaction.ErrUnknownItem)
	}
	return ctrl.Click(ctx, word)
}

// host lets interaction controllers act on the turn without touching State.
type host struct {
	o    *Orchestrator
	turn *story.TurnPayload
}

func (h host) Session() backend.Session {
	return h.o.Session()
}

func (h host) RequestPronunciation(p interaction.Pronunciation) {
	h.o.RequestPronunciation(p)
}

func (h host) SelectionMade(kind story.InteractionKind, word string) {
	h.o.view.HideInteraction()
	logrus.WithFields(logrus.Fields{"interaction": kind, "word": word}).Debug("Interaction selection made")
}

func (h host) InteractionCompleted(kind story.InteractionKind, word string) {
	current := false
	_ = h.o.update(func(s *State) error {
		if kind == story.InteractionSelectDestination {
			s.Destination = word
		}
		// the confirmation may already have moved on to the next turn
		if s.LastTurn == h.turn {
			s.Answered = true
			current = true
		}
		return nil
	})
	if current {
		h.o.view.HideInteraction()
	}
	h.o.notify(view.LevelSuccess, fmt.Sprintf("✅ %q selected!", word))
}

func (h host) ItemPracticed(word string, all bool) {
	// gating depends on the controller, so recompute controls
	_ = h.o.update(func(*State) error { return nil })
	h.o.notify(view.LevelSuccess, fmt.Sprintf("✅ %q practice completed!", word))
	if all {
		h.o.notify(view.LevelSuccess, "🎉 All items practiced! You can continue to next dialogue.")
	}
}

func (h host) ShowExploration(d *story.TurnPayload) {
	h.o.view.ShowDialogue(view.Dialogue{
		Kind:      story.KindCharacterDialogue,
		Character: d.Character,
		Tokens:    view.Tokenize(d.Text, h.o.Snapshot().OriginalTargetWords),
		Image:     d.Image,
	})
}

func (h host) RenderInteraction(kind story.InteractionKind, buttons []view.Button) {
	h.o.view.ShowInteraction(kind, buttons)
}

func (h host) ShowPopup(message string) {
	h.o.view.ShowPopup(message)
}

func (h host) HidePopup() {
	h.o.view.HidePopup()
}

func (h host) Notify(level view.Level, message string) {
	h.o.notify(level, message)
}
