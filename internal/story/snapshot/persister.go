package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
)

// Persister merges turn snapshots into the stored user record. Snapshot
// writes never fail past the call site.
type Persister struct {
	mu    sync.Mutex
	store Store
	data  *UserData
	now   func() time.Time
}

func NewPersister(store Store) *Persister {
	return &Persister{store: store, now: time.Now}
}

// load returns the cached record, reading it from the store on first use.
func (p *Persister) load(ctx context.Context) (*UserData, error) {
	if p.data != nil {
		return p.data, nil
	}
	data, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.data = data
	return data, nil
}

// SetUser records a login, replacing whatever user was stored before.
func (p *Persister) SetUser(ctx context.Context, userID string, stories []story.Item) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data := &UserData{
		UserID:    userID,
		LoginTime: p.now(),
		Stories:   stories,
	}
	if err := p.store.Save(ctx, data); err != nil {
		return err
	}
	p.data = data
	return nil
}

// CurrentUser returns a copy of the stored user record.
func (p *Persister) CurrentUser(ctx context.Context) (*UserData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	cp := *data
	if data.CurrentStory != nil {
		s := data.CurrentStory.clone()
		cp.CurrentStory = &s
	}
	return &cp, nil
}

// SaveSnapshot stores s as the user's current story. Failures, including
// quota errors, are logged and swallowed.
func (p *Persister) SaveSnapshot(ctx context.Context, s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		data = &UserData{UserID: s.UserID, LoginTime: p.now()}
		err = nil
	}
	if err != nil {
		logrus.WithError(err).Warn("Failed to read user data, snapshot not saved")
		return
	}

	next := *data
	cp := s.clone()
	next.CurrentStory = &cp
	if next.UserID == "" {
		next.UserID = s.UserID
	}

	if err := p.store.Save(ctx, &next); err != nil {
		entry := logrus.WithError(err).WithFields(logrus.Fields{
			"story_id":    s.StoryID,
			"dialogue_id": s.DialogueID,
		})
		if errors.Is(err, ErrQuotaExceeded) {
			entry.Warn("Snapshot exceeds storage quota, skipping save")
		} else {
			entry.Warn("Failed to save snapshot")
		}
		return
	}
	p.data = &next
}

// LoadSnapshot returns the stored current story, or ErrNoSnapshot.
func (p *Persister) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if data.CurrentStory == nil {
		return nil, ErrNoSnapshot
	}
	s := data.CurrentStory.clone()
	return &s, nil
}

// ClearSnapshot drops the current story but keeps the login.
func (p *Persister) ClearSnapshot(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := p.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			logrus.WithError(err).Warn("Failed to read user data while clearing snapshot")
		}
		return
	}
	next := *data
	next.CurrentStory = nil
	if err := p.store.Save(ctx, &next); err != nil {
		logrus.WithError(err).Warn("Failed to clear snapshot")
		return
	}
	p.data = &next
}

// Clear removes everything, used on logout.
func (p *Persister) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.data = nil
	return p.store.Clear(ctx)
}

func (s Snapshot) clone() Snapshot {
	s.CurrentWordsInDialogue = append([]string(nil), s.CurrentWordsInDialogue...)
	s.PronouncedWords = append([]string(nil), s.PronouncedWords...)
	return s
}
