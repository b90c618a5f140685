package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/config"
	"storytalk/internal/story/app"
)

func main() {
	config.Init()

	cfg, err := config.Load()
	if err != nil {
		colours.Error.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Log)

	talk, err := app.NewStoryTalk(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start storytalk")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		talk.Stop()
		fmt.Println("\n" + colours.Warning.Sprint("👋 Goodbye! Your progress is saved. 🌙"))
		os.Exit(0)
	}()

	rootCmd := &cobra.Command{
		Use:   "storytalk",
		Short: "🗣️ Talk your way through interactive stories",
		Long: `
┌─────────────────────────────────────┐
│  📚 Welcome to StoryTalk! 🗣️        │
│  Practice speaking, one story       │
│  turn at a time 👶✨                │
└─────────────────────────────────────┘

StoryTalk plays speech-practice stories from your story server. Say the
target words, pick where to go next and explore each scene.
		`,
		Run: func(cmd *cobra.Command, args []string) {
			talk.ShowWelcome()
		},
	}

	loginCmd := &cobra.Command{
		Use:   "login <user-id>",
		Short: "🔑 Log in and fetch your stories",
		Args:  cobra.ExactArgs(1),
		Run:   talk.Login,
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "👋 Log out and forget saved progress",
		Run:   talk.Logout,
	}

	storiesCmd := &cobra.Command{
		Use:   "stories",
		Short: "📋 List your stories",
		Long:  "Display the stories assigned to you, from the local cache when it is fresh",
		Run:   talk.ListStories,
	}

	startCmd := &cobra.Command{
		Use:   "start <story-id>",
		Short: "📖 Start a story",
		Args:  cobra.ExactArgs(1),
		Run:   talk.StartStory,
	}

	playCmd := &cobra.Command{
		Use:   "play",
		Short: "▶️ Continue the story in progress",
		Run:   talk.Resume,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "📊 Show saved progress",
		Run:   talk.ShowStatus,
	}

	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "🎤 Review your recordings and pronunciation accuracy",
		Run:   talk.ListRecordings,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "⚙️ Show effective settings",
		Run:   talk.ShowConfig,
	}

	storiesCmd.Flags().BoolP("refresh", "r", false, "Fetch the story list from the server")
	recordingsCmd.Flags().BoolP("details", "d", false, "List every recording with its accuracy")
	startCmd.Flags().StringP("mode", "m", "", "Story mode: sentence or word (default from config)")

	rootCmd.AddCommand(loginCmd, logoutCmd, storiesCmd, startCmd, playCmd, statusCmd, recordingsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		colours.Error.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}
}
