package turn

import (
	"github.com/samber/lo"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/view"
)

// renderTurn draws the last turn from a fresh copy of the state.
func (o *Orchestrator) renderTurn() {
	o.mu.Lock()
	s := o.state.clone()
	ctrl := o.ctrl
	o.mu.Unlock()

	p := s.LastTurn
	if p == nil {
		o.view.ShowDialogue(view.Dialogue{})
		o.view.HideInteraction()
		o.renderSidebar(s)
		return
	}

	kind := s.Kind()
	switch kind {
	case story.KindCharacterDialogue:
		o.view.ShowDialogue(view.Dialogue{
			Kind:      kind,
			Character: p.Character,
			Tokens:    view.Tokenize(p.Text, s.OriginalTargetWords),
			Image:     p.Image,
		})
		o.view.HideInteraction()

	case story.KindWordFill:
		o.view.ShowDialogue(wordFillDialogue(s))
		o.view.HideInteraction()

	case story.KindInteraction:
		o.view.ShowDialogue(view.Dialogue{
			Kind:   kind,
			Prompt: p.Prompt,
			Tokens: view.Tokenize(p.Text, s.OriginalTargetWords),
			Image:  p.Image,
		})
		if ctrl != nil {
			o.view.ShowInteraction(ctrl.Kind(), ctrl.Buttons())
		}

	case story.KindPlainPrompt:
		o.view.ShowDialogue(view.Dialogue{
			Kind:   kind,
			Prompt: p.Prompt,
			Tokens: view.Tokenize(p.Text, s.OriginalTargetWords),
			Image:  p.Image,
		})
		o.view.HideInteraction()

	case story.KindSceneComplete:
		o.view.ShowDialogue(view.Dialogue{Kind: kind, Image: p.Image})
		o.view.HideInteraction()
		o.notify(view.LevelSuccess, "Current scene is completed!")
	}

	o.renderSidebar(s)
}

// wordFillDialogue renders blanks filled with what was pronounced so far
// and one choice per word still missing.
func wordFillDialogue(s State) view.Dialogue {
	p := s.LastTurn
	tokens := view.Tokenize(p.Text, nil)
	for _, w := range s.PronouncedWords {
		tokens, _ = view.FillBlank(tokens, w)
	}
	return view.Dialogue{
		Kind:   story.KindWordFill,
		Prompt: p.Prompt,
		Tokens: tokens,
		Image:  p.Image,
		Choices: lo.Map(s.RemainingWords(), func(w string, _ int) view.Button {
			return view.Button{Label: view.CleanWord(w), Word: w}
		}),
	}
}

func (o *Orchestrator) renderSidebar(s State) {
	var text string
	if s.LastTurn != nil {
		text = s.LastTurn.Text + " " + s.LastTurn.Prompt
	}

	sb := view.Sidebar{
		TargetWords: s.TargetWords,
		Highlighted: view.WordsPresent(text, s.OriginalTargetWords),
		Sounds:      s.TargetSounds,
		ActiveSound: s.ActiveSound,
	}
	if sb.ActiveSound == "" && len(s.TargetSounds) > 0 {
		sb.ActiveSound = s.TargetSounds[0]
	}
	sb.MouthImage = view.MouthImage(sb.ActiveSound)
	if d, ok := view.SoundDescription(sb.ActiveSound); ok {
		sb.Sound = &d
	}
	o.view.ShowSidebar(sb)
}

func (o *Orchestrator) renderAudio() {
	o.mu.Lock()
	st := view.AudioStatus{Generating: o.state.AudioGenerating, Task: o.state.CurrentAudioTask}
	o.mu.Unlock()
	if o.player != nil {
		st.Playing = o.player.IsPlaying()
	}
	o.view.ShowAudioStatus(st)
}
