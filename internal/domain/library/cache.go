package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
)

var ErrNoCatalog = errors.New("story catalog unavailable")

// Fetcher lists the stories assigned to a user.
type Fetcher interface {
	ListStories(ctx context.Context, userID string) ([]story.Item, error)
}

// Cache keeps the last fetched story list on disk.
type Cache struct {
	cacheFile string
	maxAge    time.Duration
	fetcher   Fetcher
	now       func() time.Time
}

type cachedCatalog struct {
	Library     StoryLibrary `json:"library"`
	LastUpdated time.Time    `json:"last_updated"`
}

func NewCache(cacheDir string, maxAge time.Duration, fetcher Fetcher) *Cache {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		logrus.WithError(err).Warn("Failed to create cache directory")
	}
	return &Cache{
		cacheFile: filepath.Join(cacheDir, "stories_cache.json"),
		maxAge:    maxAge,
		fetcher:   fetcher,
		now:       time.Now,
	}
}

// GetLibrary returns the user's stories from a fresh cache, or from the
// backend. A stale cache is used when the backend cannot be reached.
func (c *Cache) GetLibrary(ctx context.Context, userID string) (*StoryLibrary, error) {
	cached, cacheErr := c.load()
	if cacheErr == nil && cached.Library.UserID == userID && c.fresh(cached) {
		logrus.WithField("stories", len(cached.Library.Stories)).Debug("Loading stories from cache")
		return &cached.Library, nil
	}

	lib, err := c.Refresh(ctx, userID)
	if err == nil {
		return lib, nil
	}

	if cacheErr == nil && cached.Library.UserID == userID {
		logrus.WithError(err).Warn("Story list fetch failed, using stale cache")
		return &cached.Library, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrNoCatalog, err)
}

// Refresh fetches the story list from the backend and caches it.
func (c *Cache) Refresh(ctx context.Context, userID string) (*StoryLibrary, error) {
	stories, err := c.fetcher.ListStories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	lib := &StoryLibrary{UserID: userID, Stories: stories}
	if err := c.Store(lib); err != nil {
		logrus.WithError(err).Warn("Failed to save stories to cache")
	}
	return lib, nil
}

// Store caches a story list, e.g. the one returned by login.
func (c *Cache) Store(lib *StoryLibrary) error {
	cached := cachedCatalog{
		Library:     *lib,
		LastUpdated: c.now(),
	}

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache data: %w", err)
	}
	if err := os.WriteFile(c.cacheFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"stories": len(lib.Stories),
		"file":    c.cacheFile,
	}).Debug("Saved stories to cache")
	return nil
}

func (c *Cache) fresh(cached *cachedCatalog) bool {
	return c.now().Sub(cached.LastUpdated) < c.maxAge
}

func (c *Cache) load() (*cachedCatalog, error) {
	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	var cached cachedCatalog
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cache file: %w", err)
	}
	return &cached, nil
}

// ClearCache removes the cache file.
func (c *Cache) ClearCache() error {
	if err := os.Remove(c.cacheFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	logrus.Debug("Cleared story cache")
	return nil
}

func (c *Cache) Info() CacheInfo {
	info := CacheInfo{MaxAge: c.maxAge}
	stat, err := os.Stat(c.cacheFile)
	if err != nil {
		return info
	}
	info.Exists = true
	info.LastModified = stat.ModTime()
	if cached, err := c.load(); err == nil {
		info.UserID = cached.Library.UserID
		info.Stories = len(cached.Library.Stories)
		info.Fresh = c.fresh(cached)
	}
	return info
}
