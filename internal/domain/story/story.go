package story

import "strings"

// Mode selects how the learner answers a user turn.
type Mode string

const (
	ModeSentence Mode = "sentence"
	ModeWord     Mode = "word"
)

func (m Mode) String() string {
	return string(m)
}

// ParseMode falls back to sentence mode for anything unknown, like the backend does.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeWord {
		return ModeWord
	}
	return ModeSentence
}

// Item is one story assigned to a user.
type Item struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	TargetWords  []string `json:"target_words"`
	TargetSounds []string `json:"target_sounds"`
	Status       string   `json:"status,omitempty"`
}

// Scene is an opaque reference to the current scene. Pushes may carry only the id.
type Scene struct {
	ID                string           `json:"id"`
	DialogueTemplates []map[string]any `json:"dialogue_templates,omitempty"`
}
