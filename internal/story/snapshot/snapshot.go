package snapshot

import (
	"context"
	"errors"
	"time"

	"storytalk/internal/domain/story"
)

var (
	ErrQuotaExceeded = errors.New("snapshot storage quota exceeded")
	ErrNoSnapshot    = errors.New("no snapshot stored")
)

// Snapshot is the minimal resumable turn state. Bulk fields such as the full
// target word lists or the last turn payload are never stored.
type Snapshot struct {
	UserID                 string     `json:"userId"`
	StoryID                string     `json:"storyId"`
	StoryMode              story.Mode `json:"storyMode"`
	SceneID                string     `json:"sceneId,omitempty"`
	DialogueID             int        `json:"dialogueId"`
	TotalDialogues         int        `json:"totalDialogues"`
	Destination            string     `json:"destination,omitempty"`
	CurrentWordsInDialogue []string   `json:"currentWordsInDialogue,omitempty"`
	PronouncedWords        []string   `json:"pronouncedWords,omitempty"`
}

// UserData is the single persisted record per installation.
type UserData struct {
	UserID       string       `json:"userId"`
	LoginTime    time.Time    `json:"loginTime"`
	Stories      []story.Item `json:"stories,omitempty"`
	CurrentStory *Snapshot    `json:"currentStory,omitempty"`
}

// Store persists UserData. Load returns ErrNoSnapshot when nothing is stored.
type Store interface {
	Load(ctx context.Context) (*UserData, error)
	Save(ctx context.Context, data *UserData) error
	Clear(ctx context.Context) error
}
