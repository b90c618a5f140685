package view

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

type TokenKind int

const (
	TokenPlain TokenKind = iota
	// TokenTarget is a clickable target word.
	TokenTarget
	// TokenBlank is a ___ run waiting for a pronounced word.
	TokenBlank
	// TokenFilled is a blank the learner already filled.
	TokenFilled
)

// Token is one rendered piece of dialogue text.
type Token struct {
	Kind TokenKind
	Text string
	// Word is the cleaned word a click on this token refers to.
	Word string
}

var (
	braceOrBlank = regexp.MustCompile(`\{([^}]+)\}|_{3,}`)
	blankRun     = regexp.MustCompile(`^_{3,}$`)
)

// CleanWord strips template braces and surrounding space.
func CleanWord(w string) string {
	return strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(w))
}

// NormalizeWord is CleanWord plus lowercasing, the identity used for matching.
func NormalizeWord(w string) string {
	return strings.ToLower(CleanWord(w))
}

// Tokenize splits dialogue text into plain text, clickable target words and
// blanks. {word} templates always become targets; bare occurrences of
// targetWords become targets unless that word was already templated.
func Tokenize(text string, targetWords []string) []Token {
	if text == "" {
		return nil
	}

	var tokens []Token
	processed := map[string]bool{}

	last := 0
	for _, m := range braceOrBlank.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			tokens = append(tokens, Token{Kind: TokenPlain, Text: text[last:m[0]]})
		}
		match := text[m[0]:m[1]]
		if blankRun.MatchString(match) {
			tokens = append(tokens, Token{Kind: TokenBlank, Text: match})
		} else {
			word := CleanWord(text[m[2]:m[3]])
			processed[strings.ToLower(word)] = true
			tokens = append(tokens, Token{Kind: TokenTarget, Text: word, Word: word})
		}
		last = m[1]
	}
	if last < len(text) {
		tokens = append(tokens, Token{Kind: TokenPlain, Text: text[last:]})
	}

	for _, target := range targetWords {
		clean := CleanWord(target)
		if clean == "" || processed[strings.ToLower(clean)] {
			continue
		}
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(clean) + `\b`)
		tokens = lo.FlatMap(tokens, func(tok Token, _ int) []Token {
			if tok.Kind != TokenPlain {
				return []Token{tok}
			}
			return splitPlain(tok.Text, re, processed)
		})
	}

	return tokens
}

func splitPlain(text string, re *regexp.Regexp, processed map[string]bool) []Token {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []Token{{Kind: TokenPlain, Text: text}}
	}

	var out []Token
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			out = append(out, Token{Kind: TokenPlain, Text: text[last:loc[0]]})
		}
		match := text[loc[0]:loc[1]]
		processed[strings.ToLower(match)] = true
		out = append(out, Token{Kind: TokenTarget, Text: match, Word: match})
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, Token{Kind: TokenPlain, Text: text[last:]})
	}
	return out
}

// FillBlank replaces the first blank with word. It reports false when no blank is left.
func FillBlank(tokens []Token, word string) ([]Token, bool) {
	_, idx, ok := lo.FindIndexOf(tokens, func(t Token) bool { return t.Kind == TokenBlank })
	if !ok {
		return tokens, false
	}
	out := append([]Token(nil), tokens...)
	clean := CleanWord(word)
	out[idx] = Token{Kind: TokenFilled, Text: clean, Word: clean}
	return out, true
}

// PlainText flattens tokens back into a string.
func PlainText(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// WordsPresent returns the target words that occur in text, in targetWords order.
func WordsPresent(text string, targetWords []string) []string {
	lower := strings.ToLower(text)
	return lo.Filter(targetWords, func(w string, _ int) bool {
		clean := NormalizeWord(w)
		if clean == "" {
			return false
		}
		if strings.Contains(lower, "{"+clean+"}") {
			return true
		}
		return regexp.MustCompile(`\b` + regexp.QuoteMeta(clean) + `\b`).MatchString(lower)
	})
}

// SortByDialoguePresence moves words present in the dialogue to the front,
// keeping relative order inside both groups.
func SortByDialoguePresence(words, present []string) []string {
	in := lo.SliceToMap(present, func(w string) (string, struct{}) { return NormalizeWord(w), struct{}{} })
	hit, miss := lo.FilterReject(words, func(w string, _ int) bool {
		_, ok := in[NormalizeWord(w)]
		return ok
	})
	return append(hit, miss...)
}

// MoveToFront returns words with word first. Unknown words leave the order unchanged.
func MoveToFront(words []string, word string) []string {
	target := NormalizeWord(word)
	_, idx, ok := lo.FindIndexOf(words, func(w string) bool { return NormalizeWord(w) == target })
	if !ok {
		return append([]string(nil), words...)
	}
	out := make([]string, 0, len(words))
	out = append(out, words[idx])
	out = append(out, words[:idx]...)
	return append(out, words[idx+1:]...)
}
