package story

import (
	"encoding/json"
	"strings"
)

const (
	TypeCharacterDialogue = "character_dialogue"
	TypeUserTurn          = "user_turn"
	TypeSceneComplete     = "scene_complete"
	TypeError             = "error"
)

// InteractionKind names the click-driven mini flow attached to a user turn.
type InteractionKind string

const (
	InteractionSelectDestination InteractionKind = "select_destination"
	InteractionChoose            InteractionKind = "choose"
	InteractionClick             InteractionKind = "click"
)

// TurnKind is the classification of a turn payload.
type TurnKind int

const (
	KindUnknown TurnKind = iota
	KindCharacterDialogue
	KindWordFill
	KindInteraction
	KindPlainPrompt
	KindSceneComplete
	KindError
)

func (k TurnKind) String() string {
	switch k {
	case KindCharacterDialogue:
		return "character_dialogue"
	case KindWordFill:
		return "user_turn/word_fill"
	case KindInteraction:
		return "user_turn/interaction"
	case KindPlainPrompt:
		return "user_turn/plain"
	case KindSceneComplete:
		return "scene_complete"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// TurnPayload is any turn the backend hands out: next-dialogue responses,
// next_dialogue inside user-input responses, and current_turn in state.
type TurnPayload struct {
	Type                 string          `json:"type"`
	Character            string          `json:"character,omitempty"`
	Text                 string          `json:"text,omitempty"`
	Prompt               string          `json:"prompt,omitempty"`
	Image                string          `json:"image,omitempty"`
	BtnWords             []string        `json:"btn_words,omitempty"`
	BtnImage             json.RawMessage `json:"btn_image,omitempty"`
	WordsInDialogue      []string        `json:"words_in_dialogue,omitempty"`
	OriginalDialogueText string          `json:"original_dialogue_text,omitempty"`
	Interaction          InteractionKind `json:"interaction,omitempty"`
	AudioGenerating      bool            `json:"audio_generating,omitempty"`
	Message              string          `json:"message,omitempty"`
	Error                string          `json:"error,omitempty"`

	CurrentDialogue *int `json:"current_dialogue,omitempty"`
	TotalDialogues  *int `json:"total_dialogues,omitempty"`

	HasNextDialogue *bool `json:"has_next_dialogue,omitempty"`
	IsSceneComplete *bool `json:"is_scene_complete,omitempty"`
	HasNextScene    *bool `json:"has_next_scene,omitempty"`
	IsStoryComplete *bool `json:"is_story_complete,omitempty"`
}

// Classify maps a payload to its turn kind.
func Classify(p *TurnPayload) TurnKind {
	if p == nil {
		return KindUnknown
	}
	switch p.Type {
	case TypeCharacterDialogue:
		return KindCharacterDialogue
	case TypeUserTurn:
		switch {
		case len(p.WordsInDialogue) > 0:
			return KindWordFill
		case p.Interaction != "":
			return KindInteraction
		default:
			return KindPlainPrompt
		}
	case TypeSceneComplete:
		return KindSceneComplete
	case TypeError:
		return KindError
	}
	if p.Error != "" {
		return KindError
	}
	return KindUnknown
}

// ButtonImages aligns btn_image with words. The backend sends either a JSON
// array, an object keyed by word, or a string holding one of those encoded.
func ButtonImages(raw json.RawMessage, words []string) []string {
	out := make([]string, len(words))
	if len(raw) == 0 || string(raw) == "null" {
		return out
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
		if !strings.HasPrefix(strings.TrimSpace(encoded), "[") && !strings.HasPrefix(strings.TrimSpace(encoded), "{") {
			// a single bare image applies to every button
			for i := range out {
				out[i] = encoded
			}
			return out
		}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		copy(out, list)
		return out
	}

	var byWord map[string]string
	if err := json.Unmarshal(raw, &byWord); err == nil {
		for i, w := range words {
			out[i] = byWord[w]
		}
	}
	return out
}
