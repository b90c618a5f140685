package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/view"
)

// SubmitInput answers the active user turn. In word mode with blanks to fill
// the text must be one of the missing words; otherwise it is sent as a sentence.
func (o *Orchestrator) SubmitInput(ctx context.Context, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		o.notify(view.LevelWarning, "Please enter your input.")
		return ErrEmptyInput
	}

	var (
		sess     backend.Session
		wordFill bool
		retry    int
	)
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if s.submitting {
			return ErrBusy
		}
		if s.LastTurn == nil || s.LastTurn.Type != story.TypeUserTurn ||
			s.Kind() == story.KindInteraction || s.Answered {
			return ErrNoUserTurn
		}
		sess = s.Session()
		wordFill = s.Mode == story.ModeWord && len(s.CurrentWordsInDialogue) > 0
		retry = s.RetryCount
		s.PendingInput = text
		if !wordFill {
			s.submitting = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if wordFill {
		return o.submitWord(ctx, sess, text)
	}
	return o.submitSentence(ctx, sess, text, retry)
}

type wordOutcome int

const (
	wordMatched wordOutcome = iota
	wordCompleted
	wordRepeated
	wordMismatch
)

func (o *Orchestrator) submitWord(ctx context.Context, sess backend.Session, text string) error {
	var (
		outcome   wordOutcome
		matched   string
		prevRetry int
		available []string
		original  string
	)
	norm := view.NormalizeWord(text)

	_ = o.update(func(s *State) error {
		rest := s.RemainingWords()
		if w, ok := lo.Find(rest, func(w string) bool { return view.NormalizeWord(w) == norm }); ok {
			matched = w
			s.PronouncedWords = append(s.PronouncedWords, w)
			s.PendingInput = ""
			outcome = wordMatched
			if len(rest) == 1 {
				outcome = wordCompleted
				s.submitting = true
			}
		} else if lo.ContainsBy(s.PronouncedWords, func(w string) bool { return view.NormalizeWord(w) == norm }) {
			outcome = wordRepeated
		} else {
			outcome = wordMismatch
			prevRetry = s.WordModeRetryCount
			s.WordModeRetryCount++
			available = lo.Map(rest, func(w string, _ int) string { return view.CleanWord(w) })
		}
		if s.LastTurn != nil {
			original = s.LastTurn.OriginalDialogueText
		}
		return nil
	})

	entry := logrus.WithFields(logrus.Fields{"input": text, "story_id": sess.StoryID})

	switch outcome {
	case wordMatched:
		entry.WithField("word", matched).Debug("Blank filled")
		o.renderTurn()
		o.view.SetInput("")
		o.notify(view.LevelSuccess, "Great! Keep going with the remaining words.")
		return nil

	case wordCompleted:
		entry.WithField("word", matched).Debug("All blanks filled")
		o.renderTurn()
		o.view.SetInput("")
		return o.finishWordTurn(ctx, sess, original)

	case wordRepeated:
		o.notify(view.LevelInfo, fmt.Sprintf("%q is already filled in. Try one of the remaining words.", view.CleanWord(text)))
		return nil
	}

	if prevRetry >= o.opts.MaxWordRetries {
		entry.WithField("retries", prevRetry+1).Debug("Word retry ceiling reached")
		o.notify(view.LevelWarning, "Please pronounce one of the highlighted words.")
		return nil
	}

	if err := o.backend.WordModeRetryAudio(ctx, sess, available, text, prevRetry+1); err != nil {
		entry.WithError(err).Warn("Word retry audio request failed")
	}
	o.notify(view.LevelWarning, fmt.Sprintf(
		"Try again! Say one of these words: %s. Type 'listen' to hear what you said.",
		strings.Join(available, ", ")))
	return nil
}

// CompleteWordTurn submits a fully filled word turn. When originalText is
// set, the whole line is voiced first and the submission waits for that audio.
func (o *Orchestrator) CompleteWordTurn(ctx context.Context, originalText string) error {
	var sess backend.Session
	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if s.submitting {
			return ErrBusy
		}
		s.submitting = true
		sess = s.Session()
		return nil
	})
	if err != nil {
		return err
	}
	return o.finishWordTurn(ctx, sess, originalText)
}

// finishWordTurn expects submitting to be set already.
func (o *Orchestrator) finishWordTurn(ctx context.Context, sess backend.Session, originalText string) error {
	o.mu.Lock()
	joined := strings.Join(lo.Map(o.state.PronouncedWords, func(w string, _ int) string {
		return view.CleanWord(w)
	}), " ")
	o.mu.Unlock()

	if originalText != "" {
		if err := o.backend.SpeakChildrensVoice(ctx, sess, originalText); err != nil {
			logrus.WithError(err).Warn("Complete dialogue voice request failed")
		} else {
			o.notify(view.LevelInfo, "🎵 Speaking the whole sentence...")
			if err := o.waitForAudio(ctx); err != nil {
				o.release(func(s *State) { s.submitting = false })
				return err
			}
		}
	}

	resp, err := o.backend.SubmitInput(ctx, sess, backend.Input{Text: joined})
	if err != nil {
		o.release(func(s *State) { s.submitting = false })
		logrus.WithError(err).Warn("Word turn submission failed")
		o.notify(view.LevelError, fmt.Sprintf("Could not send your answer: %v", err))
		return fmt.Errorf("failed to complete word turn: %w", err)
	}
	if !resp.Success {
		o.release(func(s *State) { s.submitting = false })
		msg := lo.CoalesceOrEmpty(resp.Message, "Your answer was not accepted")
		o.notify(view.LevelError, msg)
		return fmt.Errorf("%w: %s", backend.ErrRequestFailed, msg)
	}

	o.accept(resp.NextDialogue)
	o.notify(view.LevelSuccess, "All words completed! Moving to next dialogue.")
	return nil
}

// waitForAudio blocks until no audio is being generated, or until the
// configured timeout passes, which is not an error.
func (o *Orchestrator) waitForAudio(ctx context.Context) error {
	o.mu.Lock()
	idle := o.audioIdle
	o.mu.Unlock()

	timer := time.NewTimer(o.opts.AudioWaitTimeout)
	defer timer.Stop()

	select {
	case <-idle:
		return nil
	case <-timer.C:
		logrus.WithField("timeout", o.opts.AudioWaitTimeout).Warn("Audio generation wait timed out")
		o.notify(view.LevelWarning, "Audio generation taking too long, proceeding...")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) submitSentence(ctx context.Context, sess backend.Session, text string, retry int) error {
	resp, err := o.backend.SubmitInput(ctx, sess, backend.Input{Text: text, RetryCount: retry})
	if err != nil {
		o.release(func(s *State) { s.submitting = false })
		logrus.WithError(err).Warn("User input submission failed")
		o.notify(view.LevelError, fmt.Sprintf("Could not send your answer: %v", err))
		return fmt.Errorf("failed to submit input: %w", err)
	}

	if resp.Success {
		o.view.SetInput("")
		o.accept(resp.NextDialogue)
		o.notify(view.LevelSuccess, "User input processed successfully!")
		return nil
	}

	if resp.RetryRequired && len(resp.MissingWords) > 0 {
		_ = o.update(func(s *State) error {
			s.submitting = false
			s.RetryCount = resp.RetryCount
			return nil
		})
		logrus.WithFields(logrus.Fields{
			"missing": resp.MissingWords,
			"retry":   resp.RetryCount,
		}).Debug("Target words missing")
		o.notify(view.LevelWarning, retryNotice(resp))
		return nil
	}

	o.release(func(s *State) { s.submitting = false })
	msg := lo.CoalesceOrEmpty(resp.Message, "Your answer was not accepted")
	o.notify(view.LevelError, msg)
	return fmt.Errorf("%w: %s", backend.ErrRequestFailed, msg)
}

func retryNotice(resp *story.UserInputResponse) string {
	maxRetries := resp.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	last := resp.RetryCount >= maxRetries-1
	words := strings.Join(resp.MissingWords, ", ")

	if resp.AudioFeedbackStarted {
		msg := "🎵 Listen for instructions! Please include these words: " + words
		if last {
			msg += " (Last attempt - we'll continue after this)"
		}
		return msg
	}
	msg := fmt.Sprintf("Please include these target words in your response: %s. Try again!", words)
	if last {
		msg += " (Last attempt)"
	}
	return msg
}

// accept closes the answered turn and applies the next one, if any.
func (o *Orchestrator) accept(next *story.TurnPayload) {
	if next != nil {
		o.applyTurn(next)
		return
	}
	_ = o.update(func(s *State) error {
		s.submitting = false
		s.RetryCount = 0
		s.WordModeRetryCount = 0
		s.PendingInput = ""
		s.Answered = true
		return nil
	})
}
