package turn_test

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/view"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) State(ctx context.Context, s backend.Session) (*story.StateResponse, error) {
	args := m.Called(ctx, s)
	resp, _ := args.Get(0).(*story.StateResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) NextDialogue(ctx context.Context, s backend.Session) (*story.TurnPayload, error) {
	args := m.Called(ctx, s)
	resp, _ := args.Get(0).(*story.TurnPayload)
	return resp, args.Error(1)
}

func (m *MockBackend) SubmitInput(ctx context.Context, s backend.Session, in backend.Input) (*story.UserInputResponse, error) {
	args := m.Called(ctx, s, in)
	resp, _ := args.Get(0).(*story.UserInputResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) NextScene(ctx context.Context, s backend.Session) (*story.NextSceneResponse, error) {
	args := m.Called(ctx, s)
	resp, _ := args.Get(0).(*story.NextSceneResponse)
	return resp, args.Error(1)
}

func (m *MockBackend) WordModeRetryAudio(ctx context.Context, s backend.Session, available []string, userInput string, retryCount int) error {
	return m.Called(ctx, s, available, userInput, retryCount).Error(0)
}

func (m *MockBackend) ListenBack(ctx context.Context, s backend.Session) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockBackend) SpeakChildrensVoice(ctx context.Context, s backend.Session, dialogueText string) error {
	return m.Called(ctx, s, dialogueText).Error(0)
}

func (m *MockBackend) PlaySoundDescription(ctx context.Context, s backend.Session, description string) error {
	return m.Called(ctx, s, description).Error(0)
}

func (m *MockBackend) Logout(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockBackend) ResolveURL(raw string) string {
	return m.Called(raw).String(0)
}

func (m *MockBackend) PronounceWord(ctx context.Context, s backend.Session, word, targetSound string) error {
	return m.Called(ctx, s, word, targetSound).Error(0)
}

func (m *MockBackend) SelectDestination(ctx context.Context, s backend.Session, destination string) error {
	return m.Called(ctx, s, destination).Error(0)
}

func (m *MockBackend) ChooseItem(ctx context.Context, s backend.Session, item string) error {
	return m.Called(ctx, s, item).Error(0)
}

func (m *MockBackend) ExploreItem(ctx context.Context, s backend.Session, item string, available []string) (*story.ExploreResponse, error) {
	args := m.Called(ctx, s, item, available)
	resp, _ := args.Get(0).(*story.ExploreResponse)
	return resp, args.Error(1)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RequestStoryUpdate() error {
	return m.Called().Error(0)
}

type notice struct {
	Level   view.Level
	Message string
}

// fakeView records what the orchestrator rendered.
type fakeView struct {
	mu          sync.Mutex
	dialogues   []view.Dialogue
	controls    view.Controls
	sidebar     view.Sidebar
	audio       view.AudioStatus
	notices     []notice
	prompt      string
	interaction []view.Button
	input       string
}

func (v *fakeView) ShowDialogue(d view.Dialogue) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dialogues = append(v.dialogues, d)
}

func (v *fakeView) ShowInteraction(_ story.InteractionKind, buttons []view.Button) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interaction = buttons
}

func (v *fakeView) HideInteraction() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.interaction = nil
}

func (v *fakeView) ShowSidebar(s view.Sidebar) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sidebar = s
}

func (v *fakeView) ShowControls(c view.Controls) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.controls = c
}

func (v *fakeView) ShowAudioStatus(s view.AudioStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.audio = s
}

func (v *fakeView) ShowPopup(string) {}
func (v *fakeView) HidePopup()       {}

func (v *fakeView) ShowPronunciationPrompt(sentence string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prompt = sentence
}

func (v *fakeView) HidePronunciationPrompt() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.prompt = ""
}

func (v *fakeView) SetInput(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.input = text
}

func (v *fakeView) Notify(level view.Level, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, notice{level, message})
}

func (v *fakeView) lastDialogue() view.Dialogue {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.dialogues) == 0 {
		return view.Dialogue{}
	}
	return v.dialogues[len(v.dialogues)-1]
}

func (v *fakeView) lastControls() view.Controls {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controls
}

func (v *fakeView) noticed(substr string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, nt := range v.notices {
		if strings.Contains(nt.Message, substr) {
			n++
		}
	}
	return n
}

type fakePersister struct {
	mu      sync.Mutex
	saved   []snapshot.Snapshot
	cleared int
}

func (p *fakePersister) SaveSnapshot(_ context.Context, s snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, s)
}

func (p *fakePersister) ClearSnapshot(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
}

func (p *fakePersister) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared++
	return nil
}

func (p *fakePersister) last() (snapshot.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saved) == 0 {
		return snapshot.Snapshot{}, false
	}
	return p.saved[len(p.saved)-1], true
}
