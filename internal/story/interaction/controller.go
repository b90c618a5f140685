package interaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/view"
)

var (
	ErrUnknownItem    = errors.New("unknown interaction item")
	ErrAlreadyChosen  = errors.New("selection already made")
	ErrNotExploration = errors.New("empty clicks only apply to click interactions")
)

const DefaultDisarmDelay = 2 * time.Second

// Backend is the slice of the story API the controllers call.
type Backend interface {
	PronounceWord(ctx context.Context, s backend.Session, word, targetSound string) error
	SelectDestination(ctx context.Context, s backend.Session, destination string) error
	ChooseItem(ctx context.Context, s backend.Session, item string) error
	ExploreItem(ctx context.Context, s backend.Session, item string, available []string) (*story.ExploreResponse, error)
}

// Pronunciation is a sentence the user has to say before OnConfirmed runs.
// OnCancelled runs when the prompt is dismissed instead.
type Pronunciation struct {
	Sentence        string
	SidebarPractice bool
	OnConfirmed     func(ctx context.Context) error
	OnCancelled     func()
}

// Host is what the controller needs from whoever owns the turn.
type Host interface {
	Session() backend.Session
	RequestPronunciation(p Pronunciation)
	// SelectionMade hides the selector once a choice has been committed to.
	SelectionMade(kind story.InteractionKind, word string)
	// InteractionCompleted lets the turn move on.
	InteractionCompleted(kind story.InteractionKind, word string)
	ItemPracticed(word string, allPracticed bool)
	ShowExploration(d *story.TurnPayload)
	RenderInteraction(kind story.InteractionKind, buttons []view.Button)
	ShowPopup(message string)
	HidePopup()
	Notify(level view.Level, message string)
}

type element struct {
	word      string
	image     string
	clicks    int
	practiced bool
}

// Controller runs the two-click confirm gesture for one interaction turn.
type Controller struct {
	kind        story.InteractionKind
	backend     Backend
	host        Host
	disarmDelay time.Duration
	pick        func(n int) int

	mu       sync.Mutex
	elements []*element
	armed    *element
	timer    *time.Timer
	chosen   bool
	closed   bool
}

func NewController(kind story.InteractionKind, b Backend, host Host, disarmDelay time.Duration) *Controller {
	if disarmDelay <= 0 {
		disarmDelay = DefaultDisarmDelay
	}
	return &Controller{
		kind:        kind,
		backend:     b,
		host:        host,
		disarmDelay: disarmDelay,
		pick:        rand.Intn,
	}
}

func (c *Controller) Kind() story.InteractionKind {
	return c.kind
}

// Setup replaces every element and resets all click counters.
func (c *Controller) Setup(words, images []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimer()
	c.armed = nil
	c.chosen = false
	c.closed = false
	c.elements = lo.Map(words, func(w string, i int) *element {
		e := &element{word: w}
		if i < len(images) {
			e.image = images[i]
		}
		return e
	})
}

// Close stops the disarm timer; the controller ignores clicks afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimer()
	c.armed = nil
	c.closed = true
}

func (c *Controller) Buttons() []view.Button {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttons()
}

// buttons must be called with c.mu held.
func (c *Controller) buttons() []view.Button {
	return lo.Map(c.elements, func(e *element, _ int) view.Button {
		return view.Button{
			Label:     e.word,
			Word:      e.word,
			Image:     e.image,
			Armed:     e == c.armed,
			Practiced: e.practiced,
		}
	})
}

// AllPracticed reports whether a click interaction has nothing left to
// practice. Other kinds never block on practice.
func (c *Controller) AllPracticed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kind != story.InteractionClick {
		return true
	}
	return lo.EveryBy(c.elements, func(e *element) bool { return e.practiced })
}

func (c *Controller) Words() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo.Map(c.elements, func(e *element, _ int) string { return e.word })
}

// Click handles one click on the element for word. The first click arms it,
// a second click while still armed commits.
func (c *Controller) Click(ctx context.Context, word string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyChosen
	}
	e, ok := lo.Find(c.elements, func(e *element) bool { return e.word == word })
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownItem, word)
	}
	if c.chosen {
		c.mu.Unlock()
		return ErrAlreadyChosen
	}

	e.clicks++
	if e.clicks < 2 || c.armed != e {
		c.arm(e)
		buttons := c.buttons()
		c.mu.Unlock()

		c.pronounce(ctx, word)
		c.host.ShowPopup(c.armedMessage(word))
		c.host.RenderInteraction(c.kind, buttons)
		return nil
	}

	c.stopTimer()
	c.armed = nil
	e.clicks = 0
	if c.kind != story.InteractionClick {
		c.chosen = true
	}
	buttons := c.buttons()
	c.mu.Unlock()

	c.host.HidePopup()
	c.host.RenderInteraction(c.kind, buttons)
	return c.commit(ctx, word)
}

// arm must be called with c.mu held.
func (c *Controller) arm(e *element) {
	for _, other := range c.elements {
		if other != e {
			other.clicks = 0
		}
	}
	e.clicks = 1
	c.armed = e
	c.stopTimer()

	var t *time.Timer
	t = time.AfterFunc(c.disarmDelay, func() { c.disarm(t) })
	c.timer = t
}

func (c *Controller) disarm(t *time.Timer) {
	c.mu.Lock()
	if c.timer != t || c.armed == nil {
		c.mu.Unlock()
		return
	}
	c.armed.clicks = 0
	c.armed = nil
	c.timer = nil
	buttons := c.buttons()
	c.mu.Unlock()

	c.host.HidePopup()
	c.host.RenderInteraction(c.kind, buttons)
}

// stopTimer must be called with c.mu held.
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) armedMessage(word string) string {
	if c.kind == story.InteractionClick {
		return fmt.Sprintf("🎯 %q selected! Click again to practice it.", word)
	}
	return fmt.Sprintf("🎯 %q selected! Click again to confirm.", word)
}

// pronounce asks the backend to say the word without waiting for it.
func (c *Controller) pronounce(ctx context.Context, word string) {
	s := c.host.Session()
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := c.backend.PronounceWord(ctx, s, word, view.FirstSound(word)); err != nil {
			logrus.WithError(err).WithField("word", word).Warn("Pronounce request failed")
			return
		}
		c.host.Notify(view.LevelInfo, fmt.Sprintf("🔊 %q Pronouncing...", word))
	}()
}

func (c *Controller) commit(ctx context.Context, word string) error {
	s := c.host.Session()

	if c.kind == story.InteractionClick {
		sentence := word
		if s.Mode == story.ModeSentence {
			sentence = Sentence(c.kind, word)
		}
		c.host.RequestPronunciation(Pronunciation{
			Sentence: sentence,
			OnConfirmed: func(context.Context) error {
				c.markPracticed(word)
				return nil
			},
		})
		return nil
	}

	c.host.SelectionMade(c.kind, word)

	if s.Mode == story.ModeSentence {
		c.host.RequestPronunciation(Pronunciation{
			Sentence: Sentence(c.kind, word),
			OnConfirmed: func(ctx context.Context) error {
				if err := c.commitSelection(ctx, s, word); err != nil {
					c.reopen()
					return err
				}
				c.host.InteractionCompleted(c.kind, word)
				return nil
			},
			OnCancelled: c.reopen,
		})
		return nil
	}

	if err := c.commitSelection(ctx, s, word); err != nil {
		c.reopen()
		c.host.Notify(view.LevelError, fmt.Sprintf("Could not save your choice: %v", err))
		return err
	}
	c.host.RequestPronunciation(Pronunciation{
		Sentence: word,
		OnConfirmed: func(context.Context) error {
			c.host.InteractionCompleted(c.kind, word)
			return nil
		},
		OnCancelled: c.reopen,
	})
	return nil
}

// reopen makes the selection available again after a failed or abandoned commit.
func (c *Controller) reopen() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.chosen = false
	c.armed = nil
	for _, e := range c.elements {
		e.clicks = 0
	}
	buttons := c.buttons()
	c.mu.Unlock()

	c.host.RenderInteraction(c.kind, buttons)
}

func (c *Controller) commitSelection(ctx context.Context, s backend.Session, word string) error {
	switch c.kind {
	case story.InteractionSelectDestination:
		return c.backend.SelectDestination(ctx, s, word)
	case story.InteractionChoose:
		return c.backend.ChooseItem(ctx, s, word)
	default:
		return fmt.Errorf("interaction %q has no commit endpoint", c.kind)
	}
}

func (c *Controller) markPracticed(word string) {
	c.mu.Lock()
	e, ok := lo.Find(c.elements, func(e *element) bool { return e.word == word })
	if ok {
		e.practiced = true
	}
	all := lo.EveryBy(c.elements, func(e *element) bool { return e.practiced })
	buttons := c.buttons()
	c.mu.Unlock()

	c.host.RenderInteraction(c.kind, buttons)
	c.host.ItemPracticed(word, all)
}

// ClickEmpty narrates a random item when the user clicks outside every item.
func (c *Controller) ClickEmpty(ctx context.Context) error {
	if c.kind != story.InteractionClick {
		return ErrNotExploration
	}

	c.mu.Lock()
	if len(c.elements) == 0 || c.closed {
		c.mu.Unlock()
		return nil
	}
	words := lo.Map(c.elements, func(e *element, _ int) string { return e.word })
	item := words[c.pick(len(words))]
	c.mu.Unlock()

	resp, err := c.backend.ExploreItem(ctx, c.host.Session(), item, words)
	if err != nil {
		c.host.Notify(view.LevelError, fmt.Sprintf("Could not explore: %v", err))
		return err
	}
	if resp.Dialogue != nil {
		c.host.ShowExploration(resp.Dialogue)
	}
	return nil
}

// Sentence is what sentence mode asks the user to say for a selection.
func Sentence(kind story.InteractionKind, word string) string {
	switch kind {
	case story.InteractionSelectDestination:
		return fmt.Sprintf("I want to go %s.", word)
	case story.InteractionChoose:
		return fmt.Sprintf("I choose %s.", word)
	case story.InteractionClick:
		return fmt.Sprintf("I can see %s.", word)
	default:
		return word
	}
}
