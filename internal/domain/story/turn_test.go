package story_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytalk/internal/domain/story"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload *story.TurnPayload
		want    story.TurnKind
	}{
		{"nil", nil, story.KindUnknown},
		{"character", &story.TurnPayload{Type: "character_dialogue", Character: "Guide", Text: "Hi"}, story.KindCharacterDialogue},
		{"word fill wins over interaction", &story.TurnPayload{Type: "user_turn", WordsInDialogue: []string{"{lizard}"}, Interaction: "choose"}, story.KindWordFill},
		{"interaction", &story.TurnPayload{Type: "user_turn", Interaction: story.InteractionClick}, story.KindInteraction},
		{"plain prompt", &story.TurnPayload{Type: "user_turn", Prompt: "Where to?"}, story.KindPlainPrompt},
		{"scene complete", &story.TurnPayload{Type: "scene_complete"}, story.KindSceneComplete},
		{"error type", &story.TurnPayload{Type: "error", Message: "boom"}, story.KindError},
		{"untyped error field", &story.TurnPayload{Error: "boom"}, story.KindError},
		{"unknown", &story.TurnPayload{Type: "narration"}, story.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, story.Classify(tt.payload))
		})
	}
}

func TestButtonImages(t *testing.T) {
	words := []string{"park", "zoo"}

	t.Run("array", func(t *testing.T) {
		got := story.ButtonImages(json.RawMessage(`["a.png","b.png"]`), words)
		assert.Equal(t, []string{"a.png", "b.png"}, got)
	})

	t.Run("object keyed by word", func(t *testing.T) {
		got := story.ButtonImages(json.RawMessage(`{"zoo":"z.png"}`), words)
		assert.Equal(t, []string{"", "z.png"}, got)
	})

	t.Run("encoded array in a string", func(t *testing.T) {
		got := story.ButtonImages(json.RawMessage(`"[\"a.png\"]"`), words)
		assert.Equal(t, []string{"a.png", ""}, got)
	})

	t.Run("bare string applies to all", func(t *testing.T) {
		got := story.ButtonImages(json.RawMessage(`"all.png"`), words)
		assert.Equal(t, []string{"all.png", "all.png"}, got)
	})

	t.Run("missing", func(t *testing.T) {
		got := story.ButtonImages(nil, words)
		require.Len(t, got, 2)
		assert.Empty(t, got[0])
	})
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, story.ModeWord, story.ParseMode(" Word "))
	assert.Equal(t, story.ModeSentence, story.ParseMode("sentence"))
	assert.Equal(t, story.ModeSentence, story.ParseMode("???"))
}
