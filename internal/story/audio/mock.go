package audio

import (
	"context"
	"sync"
)

// MockPlayer records every URL it is asked to play.
type MockPlayer struct {
	mu      sync.Mutex
	played  []string
	playing bool
	// Err, when set, is returned by Play.
	Err error
}

func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

func (m *MockPlayer) Play(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.played = append(m.played, url)
	m.playing = true
	return nil
}

func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	return nil
}

func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Played returns the URLs played so far.
func (m *MockPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.played...)
}

// MockRecorder hands back a canned clip.
type MockRecorder struct {
	mu        sync.Mutex
	clip      []byte
	recording bool
	// Unsupported makes Probe fail with this reason.
	Unsupported string
}

func NewMockRecorder(clip []byte) *MockRecorder {
	return &MockRecorder{clip: clip}
}

func (m *MockRecorder) Probe() Capability {
	if m.Unsupported != "" {
		return Capability{Reason: m.Unsupported}
	}
	return Capability{Supported: true}
}

func (m *MockRecorder) Start(_ context.Context) error {
	if m.Unsupported != "" {
		return ErrRecordingUnsupported
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = true
	return nil
}

func (m *MockRecorder) Stop() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recording = false
	return append([]byte(nil), m.clip...), nil
}

func (m *MockRecorder) IsRecording() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recording
}

func (m *MockRecorder) Ext() string {
	return ".wav"
}
