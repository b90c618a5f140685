package story_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"storytalk/internal/domain/story"
)

func ptr(f float64) *float64 { return &f }

func TestGradeDistance(t *testing.T) {
	tests := []struct {
		distance float64
		want     story.Accuracy
		label    string
	}{
		{0, story.AccuracyExcellent, "Excellent"},
		{0.1, story.AccuracyExcellent, "Excellent"},
		{0.5, story.AccuracyGood, "Good"},
		{1.0, story.AccuracyGood, "Good"},
		{2.0, story.AccuracyFair, "Fair"},
		{2.01, story.AccuracyNeedsPractice, "Needs Practice"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := story.GradeDistance(tt.distance)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.label, got.String())
		})
	}
}

func TestStoryRecordingsAccuracy(t *testing.T) {
	recs := story.StoryRecordings{
		StoryID: "s1",
		StoryModes: []story.ModeRecordings{
			{StoryMode: story.ModeWord, Recordings: []story.Recording{
				{Filename: "recording_20250101_093000_lizard.wav"},
				{Filename: "recording_20250101_093100_ladder.wav"},
				{Filename: "recording_20250101_093200_lamp.wav"},
			}},
			{StoryMode: story.ModeSentence, Recordings: []story.Recording{
				{Filename: "recording_20250101_094000.wav"},
			}},
		},
	}
	analysis := story.Analysis{
		WordMode: story.ModeAnalysis{
			"recording_20250101_093000_lizard": {{Distance: ptr(3)}, {Distance: ptr(0.05)}},
			"recording_20250101_093100_ladder": {{Distance: nil}},
		},
		SentenceMode: story.ModeAnalysis{
			"recording_20250101_094000": {{Distance: ptr(1.5)}},
		},
	}

	stats := recs.Accuracy(analysis)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Counts[story.AccuracyExcellent])
	assert.Equal(t, 1, stats.Counts[story.AccuracyFair])
	assert.InDelta(t, 50, stats.Percent(story.AccuracyFair), 1e-9)
	assert.Zero(t, stats.Percent(story.AccuracyNeedsPractice))

	assert.Zero(t, recs.Accuracy(story.Analysis{}).Total)
}

func TestWordCounts(t *testing.T) {
	recs := story.StoryRecordings{
		TargetWords:             []string{"{Lamp}", "lizard", "{ladder}"},
		PronunciationStatistics: map[string]int{"lizard": 2, "lamp": 5},
	}

	assert.Equal(t, []story.WordCount{
		{Word: "Lamp", Count: 5},
		{Word: "lizard", Count: 2},
		{Word: "ladder", Count: 0},
	}, recs.WordCounts())
}

func TestRecordingTimestamp(t *testing.T) {
	at, ok := story.Recording{Timestamp: "20250101_093000"}.RecordedAt()
	assert.True(t, ok)
	assert.Equal(t, "2025-01-01 09:30:00", at.Format("2006-01-02 15:04:05"))

	_, ok = story.Recording{Timestamp: "yesterday"}.RecordedAt()
	assert.False(t, ok)
}

func TestFormatTargetSound(t *testing.T) {
	assert.Equal(t, "L initial", story.FormatTargetSound("words_with_l_initial"))
	assert.Equal(t, "CH initial", story.FormatTargetSound("words_with_ch_initial"))
	assert.Equal(t, "S", story.FormatTargetSound("words_with_s_final"))
	assert.Equal(t, "R", story.FormatTargetSound("r"))
}
