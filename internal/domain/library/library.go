package library

import (
	"time"

	"storytalk/internal/domain/story"
)

// StoryLibrary is the set of stories assigned to one user.
type StoryLibrary struct {
	UserID  string       `json:"user_id"`
	Stories []story.Item `json:"stories"`
}

// Find returns the story with the given id.
func (l *StoryLibrary) Find(id string) (story.Item, bool) {
	for _, it := range l.Stories {
		if it.ID == id {
			return it, true
		}
	}
	return story.Item{}, false
}

// CacheInfo describes the on-disk catalog cache.
type CacheInfo struct {
	Exists       bool
	UserID       string
	Stories      int
	LastModified time.Time
	Fresh        bool
	MaxAge       time.Duration
}
