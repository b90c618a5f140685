package turn

import (
	"github.com/samber/lo"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/view"
)

// State is the turn state of one story session. The orchestrator owns the
// only live instance; callers get copies from Orchestrator.Snapshot.
type State struct {
	UserID  string
	StoryID string
	Mode    story.Mode
	Active  bool
	// Restored is set while the state only comes from a local snapshot.
	Restored bool

	Scene          story.Scene
	DialogueIndex  int
	TotalDialogues int
	LastTurn       *story.TurnPayload

	// TargetWords may be re-sorted for display; OriginalTargetWords keeps
	// the server order.
	TargetWords         []string
	OriginalTargetWords []string
	TargetSounds        []string
	ActiveSound         string

	CurrentWordsInDialogue []string
	PronouncedWords        []string

	RetryCount         int
	WordModeRetryCount int

	AudioGenerating  bool
	CurrentAudioTask string
	// HoldForAudio keeps advance disabled after a turn that announced audio
	// generation, until a push reports generation finished.
	HoldForAudio bool

	Destination   string
	SceneComplete bool
	StoryComplete bool
	// Answered is set once the active user turn was accepted.
	Answered bool

	PendingInput string
	Recording    bool

	advancing      bool
	sceneAdvancing bool
	submitting     bool
}

func (s State) Session() backend.Session {
	return backend.Session{UserID: s.UserID, StoryID: s.StoryID, Mode: s.Mode}
}

// Kind classifies the last rendered turn.
func (s State) Kind() story.TurnKind {
	return story.Classify(s.LastTurn)
}

// InFlight reports whether any backend request that gates controls is pending.
func (s State) InFlight() bool {
	return s.advancing || s.sceneAdvancing || s.submitting
}

// RemainingWords are the blanks of the active word-fill turn still to be said.
func (s State) RemainingWords() []string {
	return remaining(s.CurrentWordsInDialogue, s.PronouncedWords)
}

func (s State) clone() State {
	out := s
	out.TargetWords = cloneStrings(s.TargetWords)
	out.OriginalTargetWords = cloneStrings(s.OriginalTargetWords)
	out.TargetSounds = cloneStrings(s.TargetSounds)
	out.CurrentWordsInDialogue = cloneStrings(s.CurrentWordsInDialogue)
	out.PronouncedWords = cloneStrings(s.PronouncedWords)
	out.Scene.DialogueTemplates = append([]map[string]any(nil), s.Scene.DialogueTemplates...)
	if s.LastTurn != nil {
		t := *s.LastTurn
		t.BtnWords = cloneStrings(t.BtnWords)
		t.WordsInDialogue = cloneStrings(t.WordsInDialogue)
		t.BtnImage = append([]byte(nil), t.BtnImage...)
		out.LastTurn = &t
	}
	return out
}

func (s State) persisted() snapshot.Snapshot {
	return snapshot.Snapshot{
		UserID:                 s.UserID,
		StoryID:                s.StoryID,
		StoryMode:              s.Mode,
		SceneID:                s.Scene.ID,
		DialogueID:             s.DialogueIndex,
		TotalDialogues:         s.TotalDialogues,
		Destination:            s.Destination,
		CurrentWordsInDialogue: cloneStrings(s.CurrentWordsInDialogue),
		PronouncedWords:        cloneStrings(s.PronouncedWords),
	}
}

// resetTurn clears everything scoped to a single turn.
func (s *State) resetTurn() {
	s.CurrentWordsInDialogue = nil
	s.PronouncedWords = nil
	s.RetryCount = 0
	s.WordModeRetryCount = 0
	s.Answered = false
	s.PendingInput = ""
}

// sortTargets re-sorts the displayed target words so the ones in text come first.
func (s *State) sortTargets(text string) {
	if len(s.OriginalTargetWords) == 0 {
		return
	}
	present := view.WordsPresent(text, s.OriginalTargetWords)
	s.TargetWords = view.SortByDialoguePresence(s.OriginalTargetWords, present)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// remaining removes one occurrence of every pronounced word from words.
func remaining(words, pronounced []string) []string {
	used := lo.CountValuesBy(pronounced, view.NormalizeWord)
	return lo.Filter(words, func(w string, _ int) bool {
		n := view.NormalizeWord(w)
		if used[n] > 0 {
			used[n]--
			return false
		}
		return true
	})
}

// consistentPronounced drops pronounced words that are not blanks of the
// current turn, keeping at most one per blank.
func consistentPronounced(words, pronounced []string) []string {
	avail := lo.CountValuesBy(words, view.NormalizeWord)
	return lo.Filter(pronounced, func(w string, _ int) bool {
		n := view.NormalizeWord(w)
		if avail[n] > 0 {
			avail[n]--
			return true
		}
		return false
	})
}
