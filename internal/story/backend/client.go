package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
)

var (
	// ErrSessionNotFound means the backend has no active story for the identifiers.
	ErrSessionNotFound = errors.New("story session not found")
	// ErrRequestFailed wraps non-2xx responses and success=false acks.
	ErrRequestFailed = errors.New("backend request failed")
)

// StatusError carries the HTTP status of a failed call. It unwraps to ErrRequestFailed.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}

// Session identifies the story a request is about.
type Session struct {
	UserID  string
	StoryID string
	Mode    story.Mode
}

func (s Session) body(extra map[string]any) map[string]any {
	b := map[string]any{
		"user_id":    s.UserID,
		"story_id":   s.StoryID,
		"story_mode": s.Mode.String(),
	}
	for k, v := range extra {
		b[k] = v
	}
	return b
}

// Client talks to the story backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the root every relative path is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL turns relative audio and image paths into absolute URLs.
func (c *Client) ResolveURL(raw string) string {
	if raw == "" {
		return ""
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}

// Login registers the user and returns the stories assigned to them.
func (c *Client) Login(ctx context.Context, userID string) (*story.LoginResponse, error) {
	var resp story.LoginResponse
	if err := c.postJSON(ctx, "/api/auth/login", map[string]any{"user_id": userID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: login: %s", ErrRequestFailed, resp.Message)
	}
	return &resp, nil
}

func (c *Client) Logout(ctx context.Context, userID string) error {
	var ack story.Ack
	if err := c.postJSON(ctx, "/api/auth/logout", map[string]any{"user_id": userID}, &ack); err != nil {
		return err
	}
	return ackErr("logout", ack)
}

// ListStories fetches the stories assigned to a user.
func (c *Client) ListStories(ctx context.Context, userID string) ([]story.Item, error) {
	q := url.Values{"user_id": {userID}}
	var resp story.StoriesResponse
	if err := c.getJSON(ctx, "/api/stories", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: list stories", ErrRequestFailed)
	}
	return resp.Stories, nil
}

// ListRecordings fetches the user's saved answers grouped by story and mode.
func (c *Client) ListRecordings(ctx context.Context, userID string) ([]story.StoryRecordings, error) {
	q := url.Values{"user_id": {userID}}
	var resp story.RecordingsResponse
	if err := c.getJSON(ctx, "/api/recordings/list", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: list recordings", ErrRequestFailed)
	}
	return resp.Recordings, nil
}

// PronunciationAnalysis fetches pronunciation distances for one story, or
// for every story when storyID is empty.
func (c *Client) PronunciationAnalysis(ctx context.Context, userID, storyID string) (*story.PronunciationAnalysisResponse, error) {
	q := url.Values{"user_id": {userID}}
	if storyID != "" {
		q.Set("story_id", storyID)
	}
	var resp story.PronunciationAnalysisResponse
	if err := c.getJSON(ctx, "/api/recordings/pronunciation-analysis", q, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: pronunciation analysis", ErrRequestFailed)
	}
	return &resp, nil
}

// InitStory starts (or resumes) a story session on the backend.
func (c *Client) InitStory(ctx context.Context, s Session) (*story.InitResponse, error) {
	var resp story.InitResponse
	if err := c.postJSON(ctx, "/api/story/init", s.body(nil), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: init story: %s", ErrRequestFailed, resp.Message)
	}
	return &resp, nil
}

// State fetches the canonical story state. success=false means the server
// has no session for s and is reported as ErrSessionNotFound.
func (c *Client) State(ctx context.Context, s Session) (*story.StateResponse, error) {
	q := url.Values{
		"user_id":    {s.UserID},
		"story_id":   {s.StoryID},
		"story_mode": {s.Mode.String()},
	}
	var resp story.StateResponse
	err := c.getJSON(ctx, "/api/story/state", q, &resp)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, ErrSessionNotFound
	}
	return &resp, nil
}

func (c *Client) NextDialogue(ctx context.Context, s Session) (*story.TurnPayload, error) {
	var turn story.TurnPayload
	if err := c.postJSON(ctx, "/api/story/next-dialogue", s.body(nil), &turn); err != nil {
		return nil, err
	}
	return &turn, nil
}

// Input is one submission to the user-input endpoint.
type Input struct {
	Text            string
	RetryCount      int
	SidebarPractice bool
}

// SubmitInput posts learner input. A retry_required answer is returned as a
// response, not an error, even when the backend flags it with a 4xx status.
func (c *Client) SubmitInput(ctx context.Context, s Session, in Input) (*story.UserInputResponse, error) {
	extra := map[string]any{
		"input":       in.Text,
		"retry_count": in.RetryCount,
	}
	if in.SidebarPractice {
		extra["sidebar_practice"] = true
	}

	var resp story.UserInputResponse
	err := c.postJSON(ctx, "/api/story/user-input", s.body(extra), &resp)
	if err != nil && !(errors.Is(err, ErrRequestFailed) && resp.RetryRequired) {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) NextScene(ctx context.Context, s Session) (*story.NextSceneResponse, error) {
	var resp story.NextSceneResponse
	if err := c.postJSON(ctx, "/api/story/next-scene", s.body(nil), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: next scene: %s", ErrRequestFailed, resp.Message)
	}
	return &resp, nil
}

func (c *Client) SelectDestination(ctx context.Context, s Session, destination string) error {
	return c.ack(ctx, "select destination", "/api/story/select-destination", s.body(map[string]any{
		"selected_destination": destination,
	}))
}

func (c *Client) ChooseItem(ctx context.Context, s Session, item string) error {
	return c.ack(ctx, "choose item", "/api/story/choose-item", s.body(map[string]any{
		"chosen_item": item,
	}))
}

// ExploreItem asks the backend to narrate one of the clickable items.
func (c *Client) ExploreItem(ctx context.Context, s Session, item string, available []string) (*story.ExploreResponse, error) {
	var resp story.ExploreResponse
	err := c.postJSON(ctx, "/api/story/explore-item", s.body(map[string]any{
		"item":            item,
		"available_items": available,
	}), &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: explore item: %s", ErrRequestFailed, resp.Message)
	}
	return &resp, nil
}

// PronounceWord requests a pronunciation clip; the clip arrives as a word_audio_ready push.
func (c *Client) PronounceWord(ctx context.Context, s Session, word, targetSound string) error {
	extra := map[string]any{"word": word}
	if targetSound != "" {
		extra["target_sound"] = targetSound
	}
	return c.ack(ctx, "pronounce word", "/api/pronounce-word", s.body(extra))
}

func (c *Client) WordModeRetryAudio(ctx context.Context, s Session, available []string, userInput string, retryCount int) error {
	return c.ack(ctx, "word mode retry audio", "/api/story/word-mode-retry-audio", s.body(map[string]any{
		"available_words": available,
		"user_input":      userInput,
		"retry_count":     retryCount,
	}))
}

func (c *Client) ListenBack(ctx context.Context, s Session) error {
	return c.ack(ctx, "listen back", "/api/story/listen-back", s.body(nil))
}

// SpeakChildrensVoice synthesizes the completed dialogue line in the learner's voice.
func (c *Client) SpeakChildrensVoice(ctx context.Context, s Session, dialogueText string) error {
	return c.ack(ctx, "speak childrens voice", "/api/story/speak-childrens-voice", s.body(map[string]any{
		"dialogue_text": dialogueText,
	}))
}

func (c *Client) PlaySoundDescription(ctx context.Context, s Session, description string) error {
	return c.ack(ctx, "play sound description", "/api/play-sound-description", s.body(map[string]any{
		"description": description,
	}))
}

func (c *Client) ack(ctx context.Context, op, path string, body any) error {
	var ack story.Ack
	if err := c.postJSON(ctx, path, body, &ack); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return ackErr(op, ack)
}

func ackErr(op string, ack story.Ack) error {
	if ack.Success {
		return nil
	}
	msg := ack.Message
	if msg == "" {
		msg = ack.Error
	}
	return fmt.Errorf("%w: %s: %s", ErrRequestFailed, op, msg)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req and decodes the JSON body into out. Non-2xx bodies are still
// decoded when possible so callers can inspect product-level failure fields.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend call")

	decodeErr := json.Unmarshal(body, out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ack story.Ack
		_ = json.Unmarshal(body, &ack)
		msg := ack.Error
		if msg == "" {
			msg = ack.Message
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to parse JSON response: %w", decodeErr)
	}
	return nil
}
