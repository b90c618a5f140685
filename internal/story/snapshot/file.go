package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileStore keeps UserData in a JSON file capped at maxBytes.
type FileStore struct {
	path     string
	maxBytes int64
}

// NewFileStore creates a file store. maxBytes <= 0 disables the quota.
func NewFileStore(path string, maxBytes int64) *FileStore {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logrus.WithError(err).Warn("Failed to create snapshot directory")
	}
	return &FileStore{path: path, maxBytes: maxBytes}
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load(_ context.Context) (*UserData, error) {
	raw, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var data UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot file: %w", err)
	}
	return &data, nil
}

// Save writes to a temp file and renames it over the old one.
func (fs *FileStore) Save(_ context.Context, data *UserData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if fs.maxBytes > 0 && int64(len(raw)) > fs.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, len(raw), fs.maxBytes)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".user_data-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

func (fs *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}
