package story

// StoryUpdate is a story_state_update push. Every field is optional; a nil
// pointer means the push did not mention it.
type StoryUpdate struct {
	UserID          string       `json:"user_id,omitempty"`
	StoryID         string       `json:"story_id,omitempty"`
	CurrentScene    *Scene       `json:"current_scene,omitempty"`
	CurrentDialogue *int         `json:"current_dialogue,omitempty"`
	TotalDialogues  *int         `json:"total_dialogues,omitempty"`
	CurrentTurn     *TurnPayload `json:"current_turn,omitempty"`

	AudioGenerating  *bool   `json:"audio_generating,omitempty"`
	CurrentAudioTask *string `json:"current_audio_task,omitempty"`

	HasNextDialogue *bool `json:"has_next_dialogue,omitempty"`
	IsSceneComplete *bool `json:"is_scene_complete,omitempty"`
	HasNextScene    *bool `json:"has_next_scene,omitempty"`
	IsStoryComplete *bool `json:"is_story_complete,omitempty"`

	StoryInfo *StoryInfoPush `json:"story_info,omitempty"`
}

// StoryInfoPush is the nested story_info some pushes carry.
type StoryInfoPush struct {
	TargetWords      []string `json:"target_words,omitempty"`
	TargetSounds     []string `json:"target_sounds,omitempty"`
	AudioGenerating  *bool    `json:"audio_generating,omitempty"`
	CurrentAudioTask *string  `json:"current_audio_task,omitempty"`
}

// AudioStatus is an audio_status_update push.
type AudioStatus struct {
	UserID           string `json:"user_id,omitempty"`
	StoryID          string `json:"story_id,omitempty"`
	AudioGenerating  bool   `json:"audio_generating"`
	CurrentAudioTask string `json:"current_audio_task,omitempty"`
}

// AudioKind names which push announced a playable clip.
type AudioKind string

const (
	AudioDialogue    AudioKind = "audio_ready"
	AudioWord        AudioKind = "word_audio_ready"
	AudioExploration AudioKind = "exploration_audio_ready"
	AudioUserVoice   AudioKind = "user_voice_ready"
)

// AudioReady is the payload shared by every *_audio_ready push.
type AudioReady struct {
	AudioURL string `json:"audio_url"`
	Task     string `json:"task,omitempty"`
	Word     string `json:"word,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	StoryID  string `json:"story_id,omitempty"`
}
