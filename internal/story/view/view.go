package view

import "storytalk/internal/domain/story"

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Button describes one clickable choice. Renderers turn it into whatever
// widget they have; behaviour stays with the owner of the Word.
type Button struct {
	Label     string
	Word      string
	Image     string
	Armed     bool
	Practiced bool
}

// Dialogue is everything needed to draw the active turn.
type Dialogue struct {
	Kind      story.TurnKind
	Character string
	Tokens    []Token
	Prompt    string
	Image     string
	// Choices are word-fill buttons for the words still to pronounce.
	Choices []Button
}

// Controls is the enabled state of every user control.
type Controls struct {
	Advance   bool
	NextScene bool
	Input     bool
	Submit    bool
	Record    bool
	// RecordReason explains why recording is unavailable, when it is.
	RecordReason  string
	Recording     bool
	StoryComplete bool
}

// Sidebar is the target word list and the mouth-shape helper.
type Sidebar struct {
	TargetWords []string
	Highlighted []string
	Sounds      []string
	ActiveSound string
	MouthImage  string
	Sound       *Sound
}

// AudioStatus mirrors the backend's audio generation state.
type AudioStatus struct {
	Generating bool
	Task       string
	// Playing is a display hint only; Generating is what gates controls.
	Playing bool
}

// View is the rendering surface the orchestrator drives.
type View interface {
	ShowDialogue(d Dialogue)
	ShowInteraction(kind story.InteractionKind, buttons []Button)
	HideInteraction()
	ShowSidebar(s Sidebar)
	ShowControls(c Controls)
	ShowAudioStatus(s AudioStatus)
	ShowPopup(message string)
	HidePopup()
	ShowPronunciationPrompt(sentence string)
	HidePronunciationPrompt()
	SetInput(text string)
	Notify(level Level, message string)
}
