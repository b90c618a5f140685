package audio

import (
	"context"
	"fmt"

	"storytalk/internal/story/backend"
)

// Uploader sends a recorded clip for speech-to-text.
type Uploader interface {
	UploadAndTranscribe(ctx context.Context, s backend.Session, audio []byte, ext string) (string, error)
}

// Transcriber couples a Recorder with the backend transcription upload.
type Transcriber struct {
	rec Recorder
	up  Uploader
}

func NewTranscriber(rec Recorder, up Uploader) *Transcriber {
	return &Transcriber{rec: rec, up: up}
}

func (t *Transcriber) Recorder() Recorder {
	return t.rec
}

// Finish stops recording and returns the transcript of what was captured.
func (t *Transcriber) Finish(ctx context.Context, s backend.Session) (string, error) {
	clip, err := t.rec.Stop()
	if err != nil {
		return "", fmt.Errorf("failed to stop recording: %w", err)
	}
	text, err := t.up.UploadAndTranscribe(ctx, s, clip, t.rec.Ext())
	if err != nil {
		return "", fmt.Errorf("failed to transcribe recording: %w", err)
	}
	return text, nil
}
