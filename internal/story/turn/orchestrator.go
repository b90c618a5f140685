package turn

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/audio"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/interaction"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/view"
)

var (
	ErrNoSession    = errors.New("no active story session")
	ErrBusy         = errors.New("a request is already in flight")
	ErrEmptyInput   = errors.New("input is empty")
	ErrNoUserTurn   = errors.New("no user turn is waiting for input")
	ErrNoPrompt     = errors.New("no pronunciation prompt is open")
	ErrNoRecorder   = errors.New("no recorder configured")
	ErrNotRecording = errors.New("not recording")
)

const (
	DefaultMaxWordRetries   = 3
	DefaultAudioWaitTimeout = 30 * time.Second
)

// Backend is the story API the orchestrator drives.
type Backend interface {
	interaction.Backend
	State(ctx context.Context, s backend.Session) (*story.StateResponse, error)
	NextDialogue(ctx context.Context, s backend.Session) (*story.TurnPayload, error)
	SubmitInput(ctx context.Context, s backend.Session, in backend.Input) (*story.UserInputResponse, error)
	NextScene(ctx context.Context, s backend.Session) (*story.NextSceneResponse, error)
	WordModeRetryAudio(ctx context.Context, s backend.Session, available []string, userInput string, retryCount int) error
	ListenBack(ctx context.Context, s backend.Session) error
	SpeakChildrensVoice(ctx context.Context, s backend.Session, dialogueText string) error
	PlaySoundDescription(ctx context.Context, s backend.Session, description string) error
	Logout(ctx context.Context, userID string) error
	ResolveURL(raw string) string
}

// Persister stores the resumable snapshot. Save failures never surface.
type Persister interface {
	SaveSnapshot(ctx context.Context, s snapshot.Snapshot)
	ClearSnapshot(ctx context.Context)
	Clear(ctx context.Context) error
}

// Refresher asks the realtime channel for a fresh story_state_update.
type Refresher interface {
	RequestStoryUpdate() error
}

type Deps struct {
	Backend     Backend
	View        view.View
	Player      audio.Player
	Transcriber *audio.Transcriber
	Persister   Persister
	Refresher   Refresher
}

type Options struct {
	MaxWordRetries   int
	AudioWaitTimeout time.Duration
	DisarmDelay      time.Duration
}

// Orchestrator owns the turn state of one story session and is the only
// thing that mutates it.
type Orchestrator struct {
	backend     Backend
	view        view.View
	player      audio.Player
	transcriber *audio.Transcriber
	persister   Persister
	refresher   Refresher
	opts        Options
	recordCap   audio.Capability

	mu         sync.Mutex
	state      State
	ctrl       *interaction.Controller
	prompt     *interaction.Pronunciation
	audioIdle  chan struct{}
	idleClosed bool
	lastSaved  *snapshot.Snapshot
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.MaxWordRetries < 0 {
		opts.MaxWordRetries = DefaultMaxWordRetries
	}
	if opts.AudioWaitTimeout <= 0 {
		opts.AudioWaitTimeout = DefaultAudioWaitTimeout
	}

	o := &Orchestrator{
		backend:     deps.Backend,
		view:        deps.View,
		player:      deps.Player,
		transcriber: deps.Transcriber,
		persister:   deps.Persister,
		refresher:   deps.Refresher,
		opts:        opts,
		audioIdle:   make(chan struct{}),
	}
	close(o.audioIdle)
	o.idleClosed = true

	if o.transcriber != nil {
		o.recordCap = o.transcriber.Recorder().Probe()
	} else {
		o.recordCap = audio.Capability{Reason: "Recording is not configured"}
	}
	return o
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

func (o *Orchestrator) Session() backend.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Session()
}

// Controls returns the gating computed from the current state.
func (o *Orchestrator) Controls() view.Controls {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.controls()
}

// Interaction returns the controller of the active interaction turn, if any.
func (o *Orchestrator) Interaction() *interaction.Controller {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ctrl
}

// update is the single mutation entry point. fn must leave the state
// untouched when it returns an error.
func (o *Orchestrator) update(fn func(s *State) error) error {
	o.mu.Lock()
	if err := fn(&o.state); err != nil {
		o.mu.Unlock()
		return err
	}
	o.enforce()
	o.syncAudioIdle()
	controls := o.controls()

	var save *snapshot.Snapshot
	if o.state.Active && o.state.StoryID != "" {
		snap := o.state.persisted()
		if o.lastSaved == nil || !reflect.DeepEqual(*o.lastSaved, snap) {
			save = &snap
			o.lastSaved = &snap
		}
	}
	o.mu.Unlock()

	o.view.ShowControls(controls)
	if save != nil && o.persister != nil {
		o.persister.SaveSnapshot(context.Background(), *save)
	}
	return nil
}

// enforce must be called with o.mu held.
func (o *Orchestrator) enforce() {
	s := &o.state
	if len(s.PronouncedWords) > 0 {
		s.PronouncedWords = consistentPronounced(s.CurrentWordsInDialogue, s.PronouncedWords)
	}
	if s.TotalDialogues > 0 && s.DialogueIndex > s.TotalDialogues {
		logrus.WithFields(logrus.Fields{
			"dialogue": s.DialogueIndex,
			"total":    s.TotalDialogues,
		}).Warn("Dialogue index beyond scene length")
	}
	if !s.AudioGenerating {
		s.CurrentAudioTask = ""
	}
}

// syncAudioIdle must be called with o.mu held.
func (o *Orchestrator) syncAudioIdle() {
	switch {
	case o.state.AudioGenerating && o.idleClosed:
		o.audioIdle = make(chan struct{})
		o.idleClosed = false
	case !o.state.AudioGenerating && !o.idleClosed:
		close(o.audioIdle)
		o.idleClosed = true
	}
}

// controls must be called with o.mu held.
func (o *Orchestrator) controls() view.Controls {
	s := &o.state
	kind := s.Kind()

	practicePending := o.ctrl != nil && !o.ctrl.AllPracticed()
	userTurn := s.Active && s.LastTurn != nil && s.LastTurn.Type == story.TypeUserTurn &&
		kind != story.KindInteraction && !s.Answered

	c := view.Controls{
		Advance: s.Active && !s.InFlight() && !s.AudioGenerating && !s.HoldForAudio &&
			s.DialogueIndex < s.TotalDialogues && !s.StoryComplete && !s.SceneComplete && !practicePending,
		NextScene: s.Active && !s.sceneAdvancing && !s.StoryComplete &&
			(s.SceneComplete || (s.TotalDialogues > 0 && s.DialogueIndex >= s.TotalDialogues)),
		Input:         userTurn && !s.submitting,
		Recording:     s.Recording,
		StoryComplete: s.StoryComplete,
	}
	c.Submit = c.Input

	wantsRecord := c.Input || o.prompt != nil
	switch {
	case s.Recording:
		c.Record = true
	case !o.recordCap.Supported:
		c.RecordReason = o.recordCap.Reason
	default:
		c.Record = wantsRecord && !s.submitting
	}
	return c
}

// installController replaces the interaction controller. Must be called with o.mu held.
func (o *Orchestrator) installController(p *story.TurnPayload, kind story.TurnKind) {
	if o.ctrl != nil {
		o.ctrl.Close()
		o.ctrl = nil
	}
	if kind != story.KindInteraction {
		return
	}
	ctrl := interaction.NewController(p.Interaction, o.backend, host{o: o, turn: p}, o.opts.DisarmDelay)
	ctrl.Setup(p.BtnWords, story.ButtonImages(p.BtnImage, p.BtnWords))
	o.ctrl = ctrl
}

func (o *Orchestrator) notify(level view.Level, msg string) {
	o.view.Notify(level, msg)
}

// release re-enables a control after its request ended without a new turn.
func (o *Orchestrator) release(fn func(s *State)) {
	_ = o.update(func(s *State) error {
		fn(s)
		return nil
	})
}
