package audio_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/audio"
	"storytalk/internal/story/backend"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) UploadAndTranscribe(ctx context.Context, s backend.Session, clip []byte, ext string) (string, error) {
	args := m.Called(ctx, s, clip, ext)
	return args.String(0), args.Error(1)
}

func TestNewPlayer(t *testing.T) {
	p, err := audio.NewPlayer(audio.Config{Player: "mock"})
	require.NoError(t, err)
	assert.IsType(t, &audio.MockPlayer{}, p)

	p, err = audio.NewPlayer(audio.Config{Player: "auto"})
	require.NoError(t, err)
	assert.IsType(t, &audio.BeepPlayer{}, p)

	_, err = audio.NewPlayer(audio.Config{Player: "vlc"})
	assert.Error(t, err)
}

func TestNewRecorder(t *testing.T) {
	r, err := audio.NewRecorder(audio.Config{Recorder: "mock"})
	require.NoError(t, err)
	assert.True(t, r.Probe().Supported)

	r, err = audio.NewRecorder(audio.Config{Recorder: "sox"})
	require.NoError(t, err)
	assert.IsType(t, &audio.ExecRecorder{}, r)
	if !r.Probe().Supported {
		assert.Contains(t, r.Probe().Reason, "rec")
	}

	_, err = audio.NewRecorder(audio.Config{Recorder: "portaudio"})
	assert.Error(t, err)
}

func TestMockRecorderUnsupported(t *testing.T) {
	r := audio.NewMockRecorder(nil)
	r.Unsupported = "no microphone"

	c := r.Probe()
	assert.False(t, c.Supported)
	assert.Equal(t, "no microphone", c.Reason)
	assert.ErrorIs(t, r.Start(context.Background()), audio.ErrRecordingUnsupported)
}

func TestBeepPlayerFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := audio.NewBeepPlayer(srv.Client())
	err := p.Play(context.Background(), srv.URL+"/static/missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.False(t, p.IsPlaying())
}

func TestTranscriber(t *testing.T) {
	ctx := context.Background()
	s := backend.Session{UserID: "u1", StoryID: "s1", Mode: story.ModeSentence}

	t.Run("uploads the clip", func(t *testing.T) {
		rec := audio.NewMockRecorder([]byte("RIFF"))
		up := new(MockUploader)
		up.On("UploadAndTranscribe", ctx, s, []byte("RIFF"), ".wav").Return("I want to go home", nil).Once()

		require.NoError(t, rec.Start(ctx))
		text, err := audio.NewTranscriber(rec, up).Finish(ctx, s)

		require.NoError(t, err)
		assert.Equal(t, "I want to go home", text)
		assert.False(t, rec.IsRecording())
		up.AssertExpectations(t)
	})

	t.Run("upload failure", func(t *testing.T) {
		rec := audio.NewMockRecorder([]byte("RIFF"))
		up := new(MockUploader)
		up.On("UploadAndTranscribe", ctx, s, mock.Anything, ".wav").Return("", errors.New("offline")).Once()

		_, err := audio.NewTranscriber(rec, up).Finish(ctx, s)
		assert.ErrorContains(t, err, "offline")
	})
}
