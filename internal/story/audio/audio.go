package audio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrRecordingUnsupported = errors.New("recording is not supported on this machine")

type Config struct {
	Player   string
	Recorder string
	// HTTPTimeout bounds clip downloads.
	HTTPTimeout time.Duration
}

// Player plays server-provided clips. Play returns once the clip has
// started; a new Play replaces whatever is playing.
type Player interface {
	Play(ctx context.Context, url string) error
	Stop() error
	IsPlaying() bool
}

// Capability is the result of probing for a usable microphone.
type Capability struct {
	Supported bool
	Reason    string
}

// Recorder captures microphone audio. Stop returns a complete clip in the
// format named by Ext.
type Recorder interface {
	Probe() Capability
	Start(ctx context.Context) error
	Stop() ([]byte, error)
	IsRecording() bool
	Ext() string
}

type PlayerType string

const (
	PlayerTypeBeep PlayerType = "beep"
	PlayerTypeMock PlayerType = "mock"
	PlayerTypeAuto PlayerType = "auto"
)

func (p PlayerType) String() string {
	return string(p)
}

type RecorderType string

const (
	RecorderTypeARecord RecorderType = "arecord"
	RecorderTypeSox     RecorderType = "sox"
	RecorderTypeMock    RecorderType = "mock"
	RecorderTypeAuto    RecorderType = "auto" // First recorder found in PATH
)

func (r RecorderType) String() string {
	return string(r)
}

// NewPlayer creates a clip player based on the provided config
func NewPlayer(config Config) (Player, error) {
	switch config.Player {
	case PlayerTypeMock.String():
		return NewMockPlayer(), nil

	case PlayerTypeBeep.String(), PlayerTypeAuto.String(), "":
		timeout := config.HTTPTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return NewBeepPlayer(&http.Client{Timeout: timeout}), nil

	default:
		return nil, fmt.Errorf("unsupported audio player type: %s", config.Player)
	}
}

// NewRecorder creates a microphone recorder. An unavailable recorder is not
// an error here; its Probe reports why.
func NewRecorder(config Config) (Recorder, error) {
	switch config.Recorder {
	case RecorderTypeMock.String():
		return NewMockRecorder([]byte("RIFF")), nil

	case RecorderTypeAuto.String(), "":
		return newExecRecorder(recorderCandidates...), nil

	case RecorderTypeARecord.String():
		return newExecRecorder(arecordTool), nil

	case RecorderTypeSox.String():
		return newExecRecorder(soxTool), nil

	default:
		return nil, fmt.Errorf("unsupported audio recorder type: %s", config.Recorder)
	}
}
