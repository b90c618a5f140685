package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"storytalk/internal/domain/story"
)

// UploadAndTranscribe sends a recorded clip for speech-to-text and returns the transcript.
func (c *Client) UploadAndTranscribe(ctx context.Context, s Session, audio []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".wav"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("audio", uuid.NewString()+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio part: %w", err)
	}
	for k, v := range map[string]string{
		"user_id":    s.UserID,
		"story_id":   s.StoryID,
		"story_mode": s.Mode.String(),
	} {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/story/audio/upload-and-transcribe", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp story.TranscribeResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.TranscribedText == "" {
		return "", fmt.Errorf("%w: transcription: %s", ErrRequestFailed, resp.Message)
	}
	return resp.TranscribedText, nil
}
