package story

import "encoding/json"

// StoryInfo is the story_info block of init and state responses.
type StoryInfo struct {
	StoryID               string       `json:"story_id,omitempty"`
	CurrentSceneID        string       `json:"current_scene_id,omitempty"`
	CurrentDialogue       int          `json:"current_dialogue"`
	TotalDialoguesInScene int          `json:"total_dialogues_in_scene"`
	SelectedDestination   string       `json:"selected_destination,omitempty"`
	TargetWords           []string     `json:"target_words,omitempty"`
	TargetSounds          []string     `json:"target_sounds,omitempty"`
	AudioGenerating       bool         `json:"audio_generating,omitempty"`
	CurrentAudioTask      string       `json:"current_audio_task,omitempty"`
	CurrentTurn           *TurnPayload `json:"current_turn,omitempty"`
	StoryCompleted        bool         `json:"story_completed,omitempty"`
}

type InitResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	StoryInfo StoryInfo `json:"story_info"`
}

type StateResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	StoryInfo StoryInfo       `json:"story_info"`
	Image     string          `json:"image,omitempty"`
	BtnWords  []string        `json:"btn_words,omitempty"`
	BtnImage  json.RawMessage `json:"btn_image,omitempty"`
}

type UserInputResponse struct {
	Success              bool         `json:"success"`
	Message              string       `json:"message,omitempty"`
	NextDialogue         *TurnPayload `json:"next_dialogue,omitempty"`
	RetryRequired        bool         `json:"retry_required,omitempty"`
	MissingWords         []string     `json:"missing_words,omitempty"`
	RetryCount           int          `json:"retry_count,omitempty"`
	MaxRetries           int          `json:"max_retries,omitempty"`
	AudioFeedbackStarted bool         `json:"audio_feedback_started,omitempty"`
}

type NextSceneResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	CurrentScene *Scene `json:"current_scene,omitempty"`
}

// ExploreResponse carries the narration for a randomly explored item.
type ExploreResponse struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message,omitempty"`
	Dialogue *TurnPayload `json:"dialogue,omitempty"`
}

type TranscribeResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	TranscribedText string `json:"transcribed_text,omitempty"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Stories []Item `json:"stories,omitempty"`
}

type StoriesResponse struct {
	Success bool   `json:"success"`
	Stories []Item `json:"stories"`
}

// Ack is the shape of every endpoint that only reports success.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
