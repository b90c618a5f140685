package snapshot_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/snapshot"
)

func sampleSnapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		UserID:                 "u1",
		StoryID:                "s1",
		StoryMode:              story.ModeWord,
		SceneID:                "scene_2",
		DialogueID:             5,
		TotalDialogues:         8,
		Destination:            "park",
		CurrentWordsInDialogue: []string{"{lizard}", "{library}"},
		PronouncedWords:        []string{"lizard"},
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 0)
		_, err := fs.Load(ctx)
		assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
	})

	t.Run("save and load uses minimal field names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "user_data.json")
		fs := snapshot.NewFileStore(path, 0)

		s := sampleSnapshot()
		require.NoError(t, fs.Save(ctx, &snapshot.UserData{UserID: "u1", CurrentStory: &s}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var generic map[string]any
		require.NoError(t, json.Unmarshal(raw, &generic))
		current := generic["currentStory"].(map[string]any)
		assert.EqualValues(t, 5, current["dialogueId"])
		assert.Equal(t, "word", current["storyMode"])
		assert.NotContains(t, current, "targetWords")

		got, err := fs.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, s, *got.CurrentStory)
	})

	t.Run("quota", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 16)
		s := sampleSnapshot()
		err := fs.Save(ctx, &snapshot.UserData{UserID: "u1", CurrentStory: &s})
		assert.ErrorIs(t, err, snapshot.ErrQuotaExceeded)
	})

	t.Run("clear twice", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 0)
		require.NoError(t, fs.Save(ctx, &snapshot.UserData{UserID: "u1"}))
		require.NoError(t, fs.Clear(ctx))
		require.NoError(t, fs.Clear(ctx))
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rs := snapshot.NewRedisStore(client, "storytalk:")
	assert.Equal(t, "storytalk:user_data", rs.Key())

	_, err := rs.Load(ctx)
	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	s := sampleSnapshot()
	require.NoError(t, rs.Save(ctx, &snapshot.UserData{UserID: "u1", CurrentStory: &s}))
	assert.True(t, mr.Exists("storytalk:user_data"))

	got, err := rs.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 5, got.CurrentStory.DialogueID)

	require.NoError(t, rs.Clear(ctx))
	assert.False(t, mr.Exists("storytalk:user_data"))
}

func TestPersister(t *testing.T) {
	ctx := context.Background()

	t.Run("save merges into login record", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 0)
		p := snapshot.NewPersister(fs)

		require.NoError(t, p.SetUser(ctx, "u1", []story.Item{{ID: "s1", Title: "Zoo"}}))
		p.SaveSnapshot(ctx, sampleSnapshot())

		user, err := p.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Len(t, user.Stories, 1)
		require.NotNil(t, user.CurrentStory)
		assert.Equal(t, 5, user.CurrentStory.DialogueID)

		// a fresh persister reads the same file
		reloaded, err := snapshot.NewPersister(fs).LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"lizard"}, reloaded.PronouncedWords)
	})

	t.Run("quota failure is swallowed", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 150)
		p := snapshot.NewPersister(fs)
		require.NoError(t, p.SetUser(ctx, "u1", nil))

		assert.NotPanics(t, func() { p.SaveSnapshot(ctx, sampleSnapshot()) })

		_, err := p.LoadSnapshot(ctx)
		assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
	})

	t.Run("clear snapshot keeps login", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 0)
		p := snapshot.NewPersister(fs)
		require.NoError(t, p.SetUser(ctx, "u1", nil))
		p.SaveSnapshot(ctx, sampleSnapshot())

		p.ClearSnapshot(ctx)

		_, err := p.LoadSnapshot(ctx)
		assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
		user, err := p.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.UserID)
	})

	t.Run("returned snapshots are copies", func(t *testing.T) {
		fs := snapshot.NewFileStore(filepath.Join(t.TempDir(), "user_data.json"), 0)
		p := snapshot.NewPersister(fs)
		p.SaveSnapshot(ctx, sampleSnapshot())

		got, err := p.LoadSnapshot(ctx)
		require.NoError(t, err)
		got.PronouncedWords[0] = "mutated"

		again, err := p.LoadSnapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, "lizard", again.PronouncedWords[0])
	})
}
