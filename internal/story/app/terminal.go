package app

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/domain/story"
	"storytalk/internal/story/view"
)

// Terminal renders the story session as coloured lines of text. It keeps
// the last choices and buttons so numbered commands can refer to them.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	choices  []view.Button
	buttons  []view.Button
	sidebar  view.Sidebar
	controls view.Controls
	audio    view.AudioStatus
	shown    bool
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) ShowDialogue(d view.Dialogue) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.choices = d.Choices
	if d.Kind == story.KindUnknown && len(d.Tokens) == 0 {
		return
	}

	fmt.Fprintln(t.out)
	if d.Kind == story.KindSceneComplete {
		colours.Success.Fprintln(t.out, "🏁 Scene complete! Type 'scene' to continue.")
		return
	}
	if d.Image != "" {
		colours.Info.Fprintf(t.out, "🖼️  %s\n", d.Image)
	}
	if d.Character != "" {
		colours.Character.Fprintf(t.out, "%s: ", d.Character)
	}
	fmt.Fprintln(t.out, renderTokens(d.Tokens))
	if d.Prompt != "" {
		colours.Prompt.Fprintf(t.out, "💬 %s\n", d.Prompt)
	}
	if len(d.Choices) > 0 {
		fmt.Fprint(t.out, "   Say one of: ")
		for i, c := range d.Choices {
			if i > 0 {
				fmt.Fprint(t.out, "  ")
			}
			fmt.Fprintf(t.out, "%d) ", i+1)
			colours.Target.Fprint(t.out, c.Label)
		}
		fmt.Fprintln(t.out)
	}
}

func renderTokens(tokens []view.Token) string {
	var b strings.Builder
	for _, tok := range tokens {
		switch tok.Kind {
		case view.TokenTarget:
			b.WriteString(colours.Target.Sprint(tok.Text))
		case view.TokenFilled:
			b.WriteString(colours.Filled.Sprint(tok.Text))
		case view.TokenBlank:
			b.WriteString("_____")
		default:
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func (t *Terminal) ShowInteraction(kind story.InteractionKind, buttons []view.Button) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buttons = buttons
	switch kind {
	case story.InteractionSelectDestination:
		colours.Prompt.Fprintln(t.out, "🗺️  Where should we go? (click <n> twice to choose)")
	case story.InteractionChoose:
		colours.Prompt.Fprintln(t.out, "🤔 Make a choice: (click <n> twice to choose)")
	case story.InteractionClick:
		colours.Prompt.Fprintln(t.out, "👆 Explore the picture: (click <n> twice, or 'tap')")
	}
	for i, b := range buttons {
		fmt.Fprintf(t.out, "  %d. ", i+1)
		switch {
		case b.Armed:
			colours.Armed.Fprint(t.out, b.Label)
			fmt.Fprint(t.out, "  ← click again to confirm")
		case b.Practiced:
			colours.Practiced.Fprint(t.out, b.Label+" ✓")
		default:
			colours.Target.Fprint(t.out, b.Label)
		}
		fmt.Fprintln(t.out)
	}
}

func (t *Terminal) HideInteraction() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buttons = nil
}

func (t *Terminal) ShowSidebar(s view.Sidebar) {
	t.mu.Lock()
	defer t.mu.Unlock()

	changed := s.ActiveSound != t.sidebar.ActiveSound
	t.sidebar = s
	if changed && s.Sound != nil && t.shown {
		t.printSound(s)
	}
	t.shown = true
}

func (t *Terminal) printSound(s view.Sidebar) {
	colours.Info.Fprintf(t.out, "👄 /%s/ (%s): %s\n", s.ActiveSound, s.Sound.Type, s.Sound.Description)
	if s.MouthImage != "" {
		fmt.Fprintf(t.out, "   Mouth shape: %s\n", s.MouthImage)
	}
}

func (t *Terminal) ShowControls(c view.Controls) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controls = c
}

func (t *Terminal) ShowAudioStatus(s view.AudioStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Generating && !t.audio.Generating {
		msg := "🔊 Generating audio..."
		if s.Task != "" {
			msg = fmt.Sprintf("🔊 Generating audio (%s)...", s.Task)
		}
		colours.Info.Fprintln(t.out, msg)
	}
	if !s.Generating && t.audio.Generating {
		colours.Success.Fprintln(t.out, "🔈 Audio ready")
	}
	t.audio = s
}

func (t *Terminal) ShowPopup(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	colours.Info.Fprintf(t.out, "💡 %s\n", message)
}

func (t *Terminal) HidePopup() {}

func (t *Terminal) ShowPronunciationPrompt(sentence string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	colours.Prompt.Fprintf(t.out, "🎤 Please say: \"%s\"\n", sentence)
	fmt.Fprintln(t.out, "   Type 'confirm' when done, 'record' to use the microphone, or 'cancel'.")
}

func (t *Terminal) HidePronunciationPrompt() {}

func (t *Terminal) SetInput(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	colours.Info.Fprintf(t.out, "📝 Heard: %s\n", text)
}

func (t *Terminal) Notify(level view.Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch level {
	case view.LevelSuccess:
		colours.Success.Fprintf(t.out, "✅ %s\n", message)
	case view.LevelWarning:
		colours.Warning.Fprintf(t.out, "⚠️  %s\n", message)
	case view.LevelError:
		colours.Error.Fprintf(t.out, "❌ %s\n", message)
	default:
		colours.Info.Fprintf(t.out, "ℹ️  %s\n", message)
	}
}

// PrintSidebar lists the target words, marking those in the current dialogue.
func (t *Terminal) PrintSidebar() {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.sidebar
	if len(s.TargetWords) == 0 {
		colours.Warning.Fprintln(t.out, "No target words yet.")
		return
	}
	colours.Title.Fprintln(t.out, "🎯 Target words")
	for _, w := range s.TargetWords {
		if slices.Contains(s.Highlighted, w) {
			colours.Target.Fprintf(t.out, "  • %s\n", w)
		} else {
			fmt.Fprintf(t.out, "  • %s\n", w)
		}
	}
	if len(s.Sounds) > 0 {
		fmt.Fprintf(t.out, "  Sounds: %s\n", strings.Join(s.Sounds, ", "))
	}
	if s.Sound != nil {
		t.printSound(s)
	}
}

// PrintControls lists the commands currently available.
func (t *Terminal) PrintControls() {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.controls
	var open []string
	if c.Advance {
		open = append(open, "next")
	}
	if c.NextScene {
		open = append(open, "scene")
	}
	if c.Submit {
		open = append(open, "say")
	}
	if c.Record {
		open = append(open, "record")
	}
	switch {
	case c.StoryComplete:
		colours.Success.Fprintln(t.out, "🎉 The story is complete!")
	case len(open) == 0:
		colours.Warning.Fprintln(t.out, "⏳ Waiting...")
	default:
		colours.Info.Fprintf(t.out, "Available: %s\n", strings.Join(open, ", "))
	}
	if c.Recording {
		colours.Warning.Fprintln(t.out, "🔴 Recording, type 'record' again to stop")
	} else if !c.Record && c.RecordReason != "" {
		fmt.Fprintf(t.out, "   🎙️  %s\n", c.RecordReason)
	}
}

// Choice returns the n-th (1-based) word-fill choice.
func (t *Terminal) Choice(n int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.choices) {
		return "", false
	}
	return t.choices[n-1].Word, true
}

// Button returns the n-th (1-based) interaction element.
func (t *Terminal) Button(n int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.buttons) {
		return "", false
	}
	return t.buttons[n-1].Word, true
}

func (t *Terminal) ActiveSound() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sidebar.ActiveSound
}
