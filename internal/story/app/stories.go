package app

import (
	"context"
	"fmt"
	"strings"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/domain/library"
	"storytalk/internal/domain/story"
)

// StoryLister returns the stories assigned to a user.
type StoryLister interface {
	GetLibrary(ctx context.Context, userID string) (*library.StoryLibrary, error)
}

// ShowStorySelection sends the user back to the story list, used when the
// server no longer knows the story being played.
func ShowStorySelection(ctx context.Context, lister StoryLister, userID string, term *Terminal) error {
	lib, err := lister.GetLibrary(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load stories: %w", err)
	}
	term.ShowStories(lib.Stories)
	return nil
}

func (t *Terminal) ShowStories(stories []story.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintln(t.out)
	colours.Title.Fprintln(t.out, "📚 Your Stories 📚")
	fmt.Fprintln(t.out)

	if len(stories) == 0 {
		colours.Warning.Fprintln(t.out, "🔍 No stories assigned yet.")
		return
	}
	for i, it := range stories {
		fmt.Fprintf(t.out, "  %d. ", i+1)
		colours.Title.Fprintf(t.out, "%s", it.Title)
		if it.Status != "" {
			fmt.Fprintf(t.out, " (%s)", it.Status)
		}
		fmt.Fprintln(t.out)
		if len(it.TargetWords) > 0 {
			fmt.Fprintf(t.out, "     🎯 Words: %s\n", strings.Join(it.TargetWords, ", "))
		}
		if len(it.TargetSounds) > 0 {
			fmt.Fprintf(t.out, "     👄 Sounds: %s\n", strings.Join(it.TargetSounds, ", "))
		}
		colours.Info.Fprintf(t.out, "     ID: %s\n", it.ID)
		fmt.Fprintln(t.out)
	}
	colours.Success.Fprintf(t.out, "✨ %d stories ready! Start one with: storytalk start <id>\n", len(stories))
}
