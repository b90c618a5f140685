package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
)

// Event names on the wire.
const (
	EventStoryStateUpdate   = "story_state_update"
	EventAudioStatusUpdate  = "audio_status_update"
	EventError              = "error"
	EventRequestStoryUpdate = "request_story_update"
)

var ErrNotConnected = errors.New("realtime channel not connected")

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives decoded pushes. Calls come from the read goroutine.
type Handler interface {
	OnStoryUpdate(update story.StoryUpdate)
	OnAudioStatus(status story.AudioStatus)
	OnAudioReady(kind story.AudioKind, ready story.AudioReady)
	OnChannelError(message string)
}

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

type Config struct {
	URL              string
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	HandshakeTimeout time.Duration
}

// Session is what request_story_update asks about.
type Session struct {
	UserID  string `json:"user_id"`
	StoryID string `json:"story_id"`
	Mode    string `json:"story_mode"`
}

// Client keeps a websocket to the backend open and feeds pushes to a Handler.
type Client struct {
	cfg      Config
	handler  Handler
	clientID string

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	state   ConnectionState
	session *Session
	attempt int
}

func NewClient(cfg Config, handler Handler) *Client {
	if cfg.ReconnectInitial <= 0 {
		cfg.ReconnectInitial = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectInitial {
		cfg.ReconnectMax = cfg.ReconnectInitial
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		cfg:      cfg,
		handler:  handler,
		clientID: uuid.NewString(),
		state:    StateDisconnected,
	}
}

func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s ConnectionState) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old != s {
		logrus.WithFields(logrus.Fields{"from": old, "to": s}).Debug("Realtime state change")
	}
}

// Register sets the session refreshed after every (re)connect and asks for
// its state right away when connected.
func (c *Client) Register(s Session) {
	c.mu.Lock()
	c.session = &s
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected {
		if err := c.RequestStoryUpdate(); err != nil {
			logrus.WithError(err).Warn("Failed to request story update")
		}
	}
}

// RequestStoryUpdate emits request_story_update for the registered session.
func (c *Client) RequestStoryUpdate() error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return fmt.Errorf("no session registered")
	}
	return c.send(EventRequestStoryUpdate, s)
}

func (c *Client) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", event, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff after every failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connectAndRead(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		c.mu.Lock()
		c.attempt++
		delay := c.backoff()
		c.mu.Unlock()

		logrus.WithError(err).WithField("retry_in", delay).Warn("Realtime channel lost, reconnecting")
		c.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff must be called with c.mu held.
func (c *Client) backoff() time.Duration {
	d := c.cfg.ReconnectInitial
	for i := 1; i < c.attempt; i++ {
		d *= 2
		if d >= c.cfg.ReconnectMax {
			return c.cfg.ReconnectMax
		}
	}
	return d
}

func (c *Client) connectAndRead(ctx context.Context) error {
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := http.Header{}
	header.Set("X-Client-ID", c.clientID)

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.attempt = 0
	registered := c.session != nil
	c.mu.Unlock()
	c.setState(StateConnected)
	logrus.WithField("url", c.cfg.URL).Info("Realtime channel connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	if registered {
		if err := c.RequestStoryUpdate(); err != nil {
			logrus.WithError(err).Warn("Failed to request story update after connect")
		}
	}

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	entry := logrus.WithFields(logrus.Fields{
		"event":       env.Event,
		"received_at": time.Now().Format(time.RFC3339Nano),
	})
	entry.Debug("Push received")

	switch env.Event {
	case EventStoryStateUpdate:
		var u story.StoryUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			entry.WithError(err).Warn("Malformed story update")
			return
		}
		c.handler.OnStoryUpdate(u)

	case EventAudioStatusUpdate:
		var s story.AudioStatus
		if err := json.Unmarshal(env.Data, &s); err != nil {
			entry.WithError(err).Warn("Malformed audio status")
			return
		}
		c.handler.OnAudioStatus(s)

	case string(story.AudioDialogue), string(story.AudioWord), string(story.AudioExploration), string(story.AudioUserVoice):
		var r story.AudioReady
		if err := json.Unmarshal(env.Data, &r); err != nil {
			entry.WithError(err).Warn("Malformed audio ready")
			return
		}
		c.handler.OnAudioReady(story.AudioKind(env.Event), r)

	case EventError:
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Data, &e)
		c.handler.OnChannelError(e.Message)

	default:
		entry.Debug("Ignoring unknown push")
	}
}
