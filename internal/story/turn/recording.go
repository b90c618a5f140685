package turn

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"storytalk/internal/story/audio"
	"storytalk/internal/story/view"
)

// RecordingCapability is the probe result taken when the orchestrator was built.
func (o *Orchestrator) RecordingCapability() audio.Capability {
	return o.recordCap
}

func (o *Orchestrator) StartRecording(ctx context.Context) error {
	if o.transcriber == nil {
		return ErrNoRecorder
	}
	if !o.recordCap.Supported {
		o.notify(view.LevelWarning, o.recordCap.Reason)
		return fmt.Errorf("%w: %s", audio.ErrRecordingUnsupported, o.recordCap.Reason)
	}

	err := o.update(func(s *State) error {
		if !s.Active {
			return ErrNoSession
		}
		if s.submitting {
			return ErrBusy
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := o.transcriber.Recorder().Start(ctx); err != nil {
		o.notify(view.LevelError, fmt.Sprintf("Could not start recording: %v", err))
		return err
	}
	o.release(func(s *State) { s.Recording = true })
	o.notify(view.LevelInfo, "🎙️ Recording... run record again to stop.")
	return nil
}

// StopRecording finishes the recording, transcribes it and puts the text
// into the pending input.
func (o *Orchestrator) StopRecording(ctx context.Context) (string, error) {
	if o.transcriber == nil {
		return "", ErrNoRecorder
	}
	if !o.transcriber.Recorder().IsRecording() {
		return "", ErrNotRecording
	}

	text, err := o.transcriber.Finish(ctx, o.Session())
	o.release(func(s *State) { s.Recording = false })
	if err != nil {
		logrus.WithError(err).Warn("Transcription failed")
		o.notify(view.LevelError, fmt.Sprintf("Speech recognition failed: %v", err))
		return "", err
	}

	o.release(func(s *State) { s.PendingInput = text })
	o.view.SetInput(text)
	o.notify(view.LevelSuccess, "Speech recognition completed!")
	return text, nil
}

// ListenBack replays the user's last recorded answer.
func (o *Orchestrator) ListenBack(ctx context.Context) error {
	s := o.Snapshot()
	if !s.Active {
		return ErrNoSession
	}
	if err := o.backend.ListenBack(ctx, s.Session()); err != nil {
		o.notify(view.LevelError, fmt.Sprintf("Could not replay your voice: %v", err))
		return err
	}
	return nil
}

// Logout ends the session on the backend and forgets everything stored locally.
func (o *Orchestrator) Logout(ctx context.Context, userID string) error {
	var errs []error
	if userID != "" {
		if err := o.backend.Logout(ctx, userID); err != nil {
			logrus.WithError(err).Warn("Backend logout failed")
			errs = append(errs, err)
		}
	}
	if o.persister != nil {
		if err := o.persister.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if o.player != nil {
		_ = o.player.Stop()
	}

	_ = o.update(func(s *State) error {
		if o.ctrl != nil {
			o.ctrl.Close()
			o.ctrl = nil
		}
		o.prompt = nil
		o.lastSaved = nil
		*s = State{}
		return nil
	})
	return errors.Join(errs...)
}
