package story

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Recording is one saved answer of the learner.
type Recording struct {
	Filename             string `json:"filename"`
	Filepath             string `json:"filepath"`
	Timestamp            string `json:"timestamp"`
	TargetWord           string `json:"target_word,omitempty"`
	Size                 int64  `json:"size"`
	Transcription        string `json:"transcription,omitempty"`
	PhonemeTranscription string `json:"phoneme_transcription,omitempty"`
	Prompt               string `json:"prompt,omitempty"`
}

// Name is the filename without its extension, the key used by the analysis.
func (r Recording) Name() string {
	return strings.TrimSuffix(r.Filename, ".wav")
}

// RecordedAt parses the YYYYMMDD_HHMMSS timestamp the server writes.
func (r Recording) RecordedAt() (time.Time, bool) {
	t, err := time.Parse("20060102_150405", r.Timestamp)
	return t, err == nil
}

type ModeRecordings struct {
	StoryMode       Mode        `json:"story_mode"`
	Recordings      []Recording `json:"recordings"`
	TotalRecordings int         `json:"total_recordings"`
}

// StoryRecordings groups a story's recordings by the mode they were made in.
type StoryRecordings struct {
	StoryID                 string           `json:"story_id"`
	StoryTitle              string           `json:"story_title"`
	StoryModes              []ModeRecordings `json:"story_modes"`
	TargetWords             []string         `json:"target_words"`
	TargetSounds            []string         `json:"target_sounds"`
	PronunciationStatistics map[string]int   `json:"pronunciation_statistics"`
	TotalRecordings         int              `json:"total_recordings"`
}

type RecordingsResponse struct {
	Success    bool              `json:"success"`
	UserID     string            `json:"user_id"`
	Recordings []StoryRecordings `json:"recordings"`
}

// WordCount is how often a target word was pronounced.
type WordCount struct {
	Word  string
	Count int
}

// WordCounts lists every target word with its count, most practiced first.
func (s StoryRecordings) WordCounts() []WordCount {
	out := make([]WordCount, 0, len(s.TargetWords))
	for _, w := range s.TargetWords {
		display := strings.TrimSpace(strings.NewReplacer("{", "", "}", "").Replace(w))
		out = append(out, WordCount{
			Word:  display,
			Count: s.PronunciationStatistics[strings.ToLower(display)],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}

// WordAnalysis compares one pronounced target word against its reference.
// Distance is nil when the word could not be measured.
type WordAnalysis struct {
	TargetWord               string   `json:"target_word"`
	GroundTruthIPA           string   `json:"ground_truth_ipa,omitempty"`
	ActualIPA                string   `json:"actual_ipa,omitempty"`
	FullPhonemeTranscription string   `json:"full_phoneme_transcription,omitempty"`
	Distance                 *float64 `json:"distance"`
	TextTranscription        string   `json:"text_transcription,omitempty"`
}

// ModeAnalysis is keyed by recording name.
type ModeAnalysis map[string][]WordAnalysis

type Analysis struct {
	WordMode     ModeAnalysis `json:"word_mode"`
	SentenceMode ModeAnalysis `json:"sentence_mode"`
}

func (a Analysis) ForMode(m Mode) ModeAnalysis {
	if m == ModeWord {
		return a.WordMode
	}
	return a.SentenceMode
}

// BestDistance is the smallest measured distance of a recording.
func (a Analysis) BestDistance(m Mode, rec Recording) (float64, bool) {
	best := math.Inf(1)
	for _, w := range a.ForMode(m)[rec.Name()] {
		if w.Distance != nil && !math.IsInf(*w.Distance, 0) && *w.Distance < best {
			best = *w.Distance
		}
	}
	return best, !math.IsInf(best, 1)
}

type StoryAnalysis struct {
	TargetWords []string `json:"target_words"`
	Analysis    Analysis `json:"analysis"`
}

// PronunciationAnalysisResponse carries AllStories when no story was named
// and Results otherwise.
type PronunciationAnalysisResponse struct {
	Success     bool                     `json:"success"`
	StoryID     string                   `json:"story_id,omitempty"`
	UserID      string                   `json:"user_id"`
	TargetWords []string                 `json:"target_words"`
	Results     Analysis                 `json:"analysis_results"`
	AllStories  map[string]StoryAnalysis `json:"all_stories_analysis,omitempty"`
}

// Accuracy grades a pronunciation distance.
type Accuracy int

const (
	AccuracyExcellent Accuracy = iota
	AccuracyGood
	AccuracyFair
	AccuracyNeedsPractice
)

func GradeDistance(d float64) Accuracy {
	switch {
	case d <= 0.1:
		return AccuracyExcellent
	case d <= 1.0:
		return AccuracyGood
	case d <= 2.0:
		return AccuracyFair
	default:
		return AccuracyNeedsPractice
	}
}

func (a Accuracy) String() string {
	switch a {
	case AccuracyExcellent:
		return "Excellent"
	case AccuracyGood:
		return "Good"
	case AccuracyFair:
		return "Fair"
	default:
		return "Needs Practice"
	}
}

// AccuracyStats counts graded recordings per accuracy.
type AccuracyStats struct {
	Counts [AccuracyNeedsPractice + 1]int
	Total  int
}

func (s AccuracyStats) Percent(a Accuracy) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Counts[a]) / float64(s.Total) * 100
}

// Accuracy grades every analysed recording of the story. Recordings without
// a measured distance are left out.
func (s StoryRecordings) Accuracy(a Analysis) AccuracyStats {
	var stats AccuracyStats
	for _, m := range s.StoryModes {
		for _, rec := range m.Recordings {
			d, ok := a.BestDistance(m.StoryMode, rec)
			if !ok {
				continue
			}
			stats.Counts[GradeDistance(d)]++
			stats.Total++
		}
	}
	return stats
}

// FormatTargetSound turns a sound category like words_with_l_initial into L initial.
func FormatTargetSound(sound string) string {
	if rest, ok := strings.CutPrefix(sound, "words_with_"); ok {
		if letters, ok := strings.CutSuffix(rest, "_initial"); ok {
			return strings.ToUpper(letters) + " initial"
		}
		sound = rest
	}
	return strings.ToUpper(strings.TrimSuffix(strings.TrimSuffix(sound, "_initial"), "_final"))
}
