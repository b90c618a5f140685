package view_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytalk/internal/story/view"
)

func targets(tokens []view.Token) []string {
	var out []string
	for _, t := range tokens {
		if t.Kind == view.TokenTarget {
			out = append(out, t.Word)
		}
	}
	return out
}

func TestTokenize(t *testing.T) {
	t.Run("braced words", func(t *testing.T) {
		tokens := view.Tokenize("The {lizard} went to the {library}.", nil)
		assert.Equal(t, []string{"lizard", "library"}, targets(tokens))
		assert.Equal(t, "The lizard went to the library.", view.PlainText(tokens))
	})

	t.Run("bare target words any case", func(t *testing.T) {
		tokens := view.Tokenize("Lizard saw a lizard near the lake.", []string{"{lizard}", "lake"})
		assert.Equal(t, []string{"Lizard", "lizard", "lake"}, targets(tokens))
	})

	t.Run("whole words only", func(t *testing.T) {
		tokens := view.Tokenize("Lizards are not a lizard.", []string{"lizard"})
		assert.Equal(t, []string{"lizard"}, targets(tokens))
	})

	t.Run("templated word not tokenized twice", func(t *testing.T) {
		tokens := view.Tokenize("The {lizard} and the lizard.", []string{"lizard"})
		assert.Equal(t, []string{"lizard"}, targets(tokens))
	})

	t.Run("blanks", func(t *testing.T) {
		tokens := view.Tokenize("I see a ___ and a _____.", nil)
		blanks := 0
		for _, tok := range tokens {
			if tok.Kind == view.TokenBlank {
				blanks++
			}
		}
		assert.Equal(t, 2, blanks)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, view.Tokenize("", []string{"x"}))
	})
}

func TestFillBlank(t *testing.T) {
	tokens := view.Tokenize("A ___ in the ___.", nil)

	tokens, ok := view.FillBlank(tokens, "{lizard}")
	require.True(t, ok)
	assert.Equal(t, "A lizard in the ___.", view.PlainText(tokens))

	tokens, ok = view.FillBlank(tokens, "library")
	require.True(t, ok)
	assert.Equal(t, "A lizard in the library.", view.PlainText(tokens))

	_, ok = view.FillBlank(tokens, "extra")
	assert.False(t, ok)
}

func TestWordListOrdering(t *testing.T) {
	words := []string{"apple", "lizard", "zebra", "library"}

	present := view.WordsPresent("The {library} has a Lizard.", words)
	assert.Equal(t, []string{"lizard", "library"}, present)

	sorted := view.SortByDialoguePresence(words, present)
	assert.Equal(t, []string{"lizard", "library", "apple", "zebra"}, sorted)
	assert.Equal(t, []string{"apple", "lizard", "zebra", "library"}, words, "input must not be reordered")

	assert.Equal(t, []string{"zebra", "apple", "lizard", "library"}, view.MoveToFront(words, "Zebra"))
	assert.Equal(t, words, view.MoveToFront(words, "unknown"))
}

func TestSidebarHelpers(t *testing.T) {
	assert.Equal(t, "sh", view.FirstSound("{Ship}"))
	assert.Equal(t, "st", view.FirstSound("star"))
	assert.Equal(t, "l", view.FirstSound("lizard"))
	assert.Empty(t, view.FirstSound(""))

	assert.Equal(t, "/mouth_img/s.png", view.MouthImage("ST"))
	assert.Empty(t, view.MouthImage("xx"))

	s, ok := view.SoundDescription("l")
	require.True(t, ok)
	assert.Equal(t, "Lateral Approximant", s.Type)

	assert.Equal(t, "s", view.SoundFromTheme("words_with_s_initial"))
	assert.Equal(t, "ch", view.SoundFromTheme("words_with_ch_initial"))
	assert.Empty(t, view.SoundFromTheme("animals"))
}
