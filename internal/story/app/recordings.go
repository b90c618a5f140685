package app

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/domain/story"
)

var accuracyColours = map[story.Accuracy]*color.Color{
	story.AccuracyExcellent:     colours.Success,
	story.AccuracyGood:          colours.Good,
	story.AccuracyFair:          colours.Warning,
	story.AccuracyNeedsPractice: colours.Error,
}

// ListRecordings shows the learner's recordings with pronunciation accuracy.
func (st *StoryTalk) ListRecordings(cmd *cobra.Command, args []string) {
	userID, ok := st.currentUser()
	if !ok {
		return
	}

	recs, err := st.client.ListRecordings(st.ctx, userID)
	if err != nil {
		colours.Error.Printf("❌ Could not load your recordings: %v\n", err)
		return
	}

	// accuracy is optional, the list is still worth showing without it
	var analysis map[string]story.StoryAnalysis
	if resp, err := st.client.PronunciationAnalysis(st.ctx, userID, ""); err != nil {
		logrus.WithError(err).Warn("Failed to load pronunciation analysis")
	} else {
		analysis = resp.AllStories
	}

	details, _ := cmd.Flags().GetBool("details")
	st.term.ShowRecordings(recs, analysis, details)
}

// ShowRecordings prints each story's practice counts and accuracy. With
// details every recording is listed under its mode.
func (t *Terminal) ShowRecordings(recs []story.StoryRecordings, analysis map[string]story.StoryAnalysis, details bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	colours.Title.Fprintln(t.out, "🎤 Recordings 🎤")
	fmt.Fprintln(t.out)

	if len(recs) == 0 {
		colours.Warning.Fprintln(t.out, "📝 No recordings yet. Record your voice while playing a story!")
		return
	}

	for _, s := range recs {
		title := s.StoryTitle
		if title == "" {
			title = "Story " + s.StoryID
		}
		colours.Title.Fprintf(t.out, "📚 %s", title)
		fmt.Fprintf(t.out, " (%d recordings)\n", s.TotalRecordings)

		if len(s.TargetSounds) > 0 {
			sounds := make([]string, len(s.TargetSounds))
			for i, snd := range s.TargetSounds {
				sounds[i] = story.FormatTargetSound(snd)
			}
			fmt.Fprintf(t.out, "   👄 Sounds: %s\n", strings.Join(sounds, ", "))
		}
		t.printWordCounts(s)

		a, analysed := analysis[s.StoryID]
		if analysed {
			t.printAccuracy(s.Accuracy(a.Analysis))
		}
		if details {
			for _, m := range s.StoryModes {
				t.printMode(m, a.Analysis, analysed)
			}
		}
		fmt.Fprintln(t.out)
	}
}

func (t *Terminal) printWordCounts(s story.StoryRecordings) {
	counts := s.WordCounts()
	if len(counts) == 0 {
		return
	}
	fmt.Fprint(t.out, "   📊 Pronunciation count: ")
	for i, wc := range counts {
		if i > 0 {
			fmt.Fprint(t.out, ", ")
		}
		c := colours.Error
		switch {
		case wc.Count >= 5:
			c = colours.Success
		case wc.Count >= 2:
			c = colours.Warning
		}
		c.Fprintf(t.out, "%s: %d", wc.Word, wc.Count)
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) printAccuracy(stats story.AccuracyStats) {
	if stats.Total == 0 {
		return
	}
	fmt.Fprint(t.out, "   🎯 Accuracy: ")
	first := true
	for a := story.AccuracyExcellent; a <= story.AccuracyNeedsPractice; a++ {
		if stats.Counts[a] == 0 {
			continue
		}
		if !first {
			fmt.Fprint(t.out, ", ")
		}
		first = false
		accuracyColours[a].Fprintf(t.out, "%s %d (%.0f%%)", a, stats.Counts[a], stats.Percent(a))
	}
	fmt.Fprintf(t.out, " of %d\n", stats.Total)
}

func (t *Terminal) printMode(m story.ModeRecordings, a story.Analysis, analysed bool) {
	colours.Info.Fprintf(t.out, "   🎯 %s mode", m.StoryMode)
	fmt.Fprintf(t.out, " (%d recordings)\n", m.TotalRecordings)
	for _, rec := range m.Recordings {
		when := rec.Timestamp
		if at, ok := rec.RecordedAt(); ok {
			when = at.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(t.out, "     🕒 %s", when)
		if rec.TargetWord != "" {
			fmt.Fprintf(t.out, "  🎯 %s", rec.TargetWord)
		}
		if analysed {
			if d, ok := a.BestDistance(m.StoryMode, rec); ok {
				grade := story.GradeDistance(d)
				fmt.Fprint(t.out, "  ")
				accuracyColours[grade].Fprintf(t.out, "📊 %s (%.2f)", grade, d)
			}
		}
		fmt.Fprintln(t.out)
		if m.StoryMode == story.ModeSentence && rec.Prompt != "" {
			fmt.Fprintf(t.out, "        💬 %s\n", rec.Prompt)
		}
		if rec.Transcription != "" {
			fmt.Fprintf(t.out, "        📝 %s\n", rec.Transcription)
		}
	}
}
