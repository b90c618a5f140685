package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/sirupsen/logrus"
)

// BeepPlayer downloads clips and plays them on the default speaker.
type BeepPlayer struct {
	httpClient *http.Client

	mu         sync.Mutex
	sampleRate beep.SampleRate
	ctrl       *beep.Ctrl
	streamer   beep.StreamSeekCloser
	playing    bool
}

func NewBeepPlayer(client *http.Client) *BeepPlayer {
	return &BeepPlayer{httpClient: client}
}

func (b *BeepPlayer) Play(ctx context.Context, url string) error {
	data, contentType, err := b.fetch(ctx, url)
	if err != nil {
		return err
	}

	streamer, format, err := decode(data, url, contentType)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}

	if err := b.Stop(); err != nil {
		logrus.WithError(err).Warn("Failed to stop previous clip")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sampleRate != format.SampleRate {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			return fmt.Errorf("failed to init speaker: %w", err)
		}
		b.sampleRate = format.SampleRate
	}

	ctrl := &beep.Ctrl{Streamer: streamer, Paused: false}
	b.ctrl = ctrl
	b.streamer = streamer
	b.playing = true

	// the callback runs under the speaker lock; Stop takes b.mu first
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		go func() {
			b.mu.Lock()
			if b.ctrl == ctrl {
				b.playing = false
			}
			b.mu.Unlock()
		}()
	})))

	logrus.WithField("url", url).Debug("Playing clip")
	return nil
}

func (b *BeepPlayer) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctrl != nil {
		speaker.Lock()
		b.ctrl.Streamer = nil
		speaker.Unlock()
	}
	var err error
	if b.streamer != nil {
		err = b.streamer.Close()
		b.streamer = nil
	}
	b.ctrl = nil
	b.playing = false
	return err
}

func (b *BeepPlayer) IsPlaying() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playing
}

func (b *BeepPlayer) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch clip %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("clip %s returned status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read clip: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func decode(data []byte, url, contentType string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0]))
	if ext == ".wav" || strings.Contains(contentType, "wav") {
		return wav.Decode(bytes.NewReader(data))
	}
	return mp3.Decode(io.NopCloser(bytes.NewReader(data)))
}
