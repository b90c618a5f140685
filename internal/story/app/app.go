package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/config"
	"storytalk/internal/domain/library"
	"storytalk/internal/domain/story"
	"storytalk/internal/story/audio"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/realtime"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/turn"
)

// StoryTalk is the terminal application: one user, one story at a time.
type StoryTalk struct {
	cfg       config.Config
	client    *backend.Client
	persister *snapshot.Persister
	catalog   *library.Cache
	player    audio.Player
	recorder  audio.Recorder
	term      *Terminal
	in        io.Reader

	ctx    context.Context
	Cancel context.CancelFunc
}

func NewStoryTalk(cfg config.Config) (*StoryTalk, error) {
	client := backend.NewClient(cfg.Server.BaseURL, cfg.Server.Timeout)

	var store snapshot.Store
	switch cfg.Snapshot.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = snapshot.NewRedisStore(rdb, cfg.Redis.KeyPrefix)
	default:
		store = snapshot.NewFileStore(cfg.Snapshot.Path, cfg.Snapshot.MaxBytes)
	}

	audioCfg := audio.Config{
		Player:      cfg.Audio.Player,
		Recorder:    cfg.Audio.Recorder,
		HTTPTimeout: cfg.Server.Timeout,
	}
	player, err := audio.NewPlayer(audioCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	recorder, err := audio.NewRecorder(audioCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &StoryTalk{
		cfg:       cfg,
		client:    client,
		persister: snapshot.NewPersister(store),
		catalog:   library.NewCache(cfg.Catalog.CacheDir, cfg.Catalog.MaxAge, client),
		player:    player,
		recorder:  recorder,
		term:      NewTerminal(os.Stdout),
		in:        os.Stdin,
		ctx:       ctx,
		Cancel:    cancel,
	}, nil
}

// Stop silences playback and any running recording.
func (st *StoryTalk) Stop() {
	st.Cancel()
	_ = st.player.Stop()
	if st.recorder.IsRecording() {
		_, _ = st.recorder.Stop()
	}
}

func (st *StoryTalk) ShowWelcome() {
	fmt.Println()
	colours.Title.Println("🌟 Welcome to StoryTalk! 🌟")
	fmt.Println()
	colours.Info.Println("📚 Available commands:")
	fmt.Println("  • storytalk login <user-id>  - Sign in and fetch your stories")
	fmt.Println("  • storytalk stories          - Browse your stories")
	fmt.Println("  • storytalk start <story-id> - Begin a story")
	fmt.Println("  • storytalk play             - Continue where you left off")
	fmt.Println("  • storytalk status           - Show your saved progress")
	fmt.Println("  • storytalk recordings       - Review your recordings")
	fmt.Println("  • storytalk logout           - Sign out")
	fmt.Println()
	colours.Prompt.Println("✨ Ready to talk your way through a story? ✨")
}

func (st *StoryTalk) currentUser() (string, bool) {
	data, err := st.persister.CurrentUser(st.ctx)
	if err != nil || data.UserID == "" {
		colours.Warning.Println("🔑 Please log in first: storytalk login <user-id>")
		return "", false
	}
	return data.UserID, true
}

func (st *StoryTalk) Login(cmd *cobra.Command, args []string) {
	userID := strings.TrimSpace(args[0])
	resp, err := st.client.Login(st.ctx, userID)
	if err != nil {
		colours.Error.Printf("❌ Login failed: %v\n", err)
		return
	}
	if err := st.persister.SetUser(st.ctx, userID, resp.Stories); err != nil {
		logrus.WithError(err).Warn("Failed to save login")
	}
	if err := st.catalog.Store(&library.StoryLibrary{UserID: userID, Stories: resp.Stories}); err != nil {
		logrus.WithError(err).Warn("Failed to cache story list")
	}

	colours.Success.Printf("👋 Welcome, %s!\n", userID)
	st.term.ShowStories(resp.Stories)
}

func (st *StoryTalk) Logout(cmd *cobra.Command, args []string) {
	data, err := st.persister.CurrentUser(st.ctx)
	userID := ""
	if err == nil {
		userID = data.UserID
	}

	o := turn.New(turn.Deps{
		Backend:   st.client,
		View:      st.term,
		Player:    st.player,
		Persister: st.persister,
	}, st.options())
	if err := o.Logout(st.ctx, userID); err != nil {
		colours.Warning.Printf("⚠️  Logged out locally, but: %v\n", err)
	}
	if err := st.catalog.ClearCache(); err != nil {
		logrus.WithError(err).Warn("Failed to clear story cache")
	}
	colours.Success.Println("👋 Logged out. See you next time!")
}

func (st *StoryTalk) ListStories(cmd *cobra.Command, args []string) {
	userID, ok := st.currentUser()
	if !ok {
		return
	}

	refresh, _ := cmd.Flags().GetBool("refresh")
	var (
		lib *library.StoryLibrary
		err error
	)
	if refresh {
		colours.Info.Println("🔄 Refreshing your stories...")
		lib, err = st.catalog.Refresh(st.ctx, userID)
	} else {
		lib, err = st.catalog.GetLibrary(st.ctx, userID)
	}
	if err != nil {
		colours.Error.Printf("❌ Could not load your stories: %v\n", err)
		return
	}
	st.term.ShowStories(lib.Stories)
}

func (st *StoryTalk) StartStory(cmd *cobra.Command, args []string) {
	userID, ok := st.currentUser()
	if !ok {
		return
	}
	modeFlag, _ := cmd.Flags().GetString("mode")
	if modeFlag == "" {
		modeFlag = st.cfg.Story.Mode
	}
	sess := backend.Session{
		UserID:  userID,
		StoryID: strings.TrimSpace(args[0]),
		Mode:    story.ParseMode(modeFlag),
	}

	if _, err := st.client.InitStory(st.ctx, sess); err != nil {
		colours.Error.Printf("❌ Could not start story '%s': %v\n", sess.StoryID, err)
		return
	}
	colours.Success.Printf("📖 Starting story %s in %s mode\n", sess.StoryID, sess.Mode)
	st.play(sess, nil)
}

func (st *StoryTalk) Resume(cmd *cobra.Command, args []string) {
	snap, err := st.persister.LoadSnapshot(st.ctx)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			colours.Warning.Println("📭 No story in progress. Start one with: storytalk start <story-id>")
			return
		}
		colours.Error.Printf("❌ Could not read saved progress: %v\n", err)
		return
	}
	sess := backend.Session{UserID: snap.UserID, StoryID: snap.StoryID, Mode: snap.StoryMode}
	colours.Success.Printf("📖 Continuing story %s\n", sess.StoryID)
	st.play(sess, snap)
}

type refresherFunc func() error

func (f refresherFunc) RequestStoryUpdate() error {
	return f()
}

func (st *StoryTalk) options() turn.Options {
	return turn.Options{
		MaxWordRetries:   st.cfg.Story.MaxWordRetries,
		AudioWaitTimeout: st.cfg.Story.AudioWaitTimeout,
		DisarmDelay:      st.cfg.Interaction.DisarmDelay,
	}
}

// play wires an orchestrator to the realtime channel and runs the prompt
// loop until the user quits.
func (st *StoryTalk) play(sess backend.Session, snap *snapshot.Snapshot) {
	ctx, cancel := context.WithCancel(st.ctx)
	defer cancel()

	var rt *realtime.Client
	o := turn.New(turn.Deps{
		Backend:     st.client,
		View:        st.term,
		Player:      st.player,
		Transcriber: audio.NewTranscriber(st.recorder, st.client),
		Persister:   st.persister,
		Refresher:   refresherFunc(func() error { return rt.RequestStoryUpdate() }),
	}, st.options())

	rt = realtime.NewClient(realtime.Config{
		URL:              st.cfg.Server.SocketURL,
		ReconnectInitial: st.cfg.Realtime.ReconnectInitial,
		ReconnectMax:     st.cfg.Realtime.ReconnectMax,
	}, o)
	go func() {
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithError(err).Warn("Realtime channel stopped")
		}
	}()
	rt.Register(realtime.Session{UserID: sess.UserID, StoryID: sess.StoryID, Mode: sess.Mode.String()})

	if snap != nil {
		o.RestoreFromSnapshot(*snap)
	}
	if err := o.LoadState(ctx, sess.UserID, sess.StoryID, sess.Mode); err != nil {
		logrus.WithError(err).Debug("Story state not loaded")
		if errors.Is(err, backend.ErrSessionNotFound) {
			if err := ShowStorySelection(ctx, st.catalog, sess.UserID, st.term); err != nil {
				colours.Error.Printf("❌ Could not load your stories: %v\n", err)
			}
		}
		return
	}

	NewSession(o, st.term, st.in).Run(ctx)
	_ = st.player.Stop()
}

func (st *StoryTalk) ShowStatus(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("📊 StoryTalk Status")

	data, err := st.persister.CurrentUser(st.ctx)
	if err != nil {
		colours.Warning.Println("🔑 Not logged in")
	} else {
		colours.Info.Printf("👤 User: %s (since %s)\n", data.UserID, data.LoginTime.Format("2006-01-02 15:04"))
		if s := data.CurrentStory; s != nil {
			colours.Info.Printf("📖 Story: %s (%s mode)\n", s.StoryID, s.StoryMode)
			fmt.Printf("   Scene: %s | Dialogue %d of %d\n", s.SceneID, s.DialogueID, s.TotalDialogues)
			if s.Destination != "" {
				fmt.Printf("   Destination: %s\n", s.Destination)
			}
			if len(s.CurrentWordsInDialogue) > 0 {
				fmt.Printf("   Words: %d of %d said\n", len(s.PronouncedWords), len(s.CurrentWordsInDialogue))
			}
		} else {
			fmt.Println("   No story in progress")
		}
	}

	info := st.catalog.Info()
	if info.Exists {
		state := "fresh"
		if !info.Fresh {
			state = "stale"
		}
		colours.Info.Printf("🗂️  Story cache: %d stories, %s (updated %s)\n",
			info.Stories, state, info.LastModified.Format("2006-01-02 15:04"))
	} else {
		fmt.Println("🗂️  Story cache: empty")
	}
}

func (st *StoryTalk) ShowConfig(cmd *cobra.Command, args []string) {
	fmt.Println()
	colours.Title.Println("⚙️ StoryTalk Settings ⚙️")
	if f := viper.ConfigFileUsed(); f != "" {
		colours.Info.Printf("📄 %s\n", f)
	}
	fmt.Println()

	keys := viper.AllKeys()
	slices.Sort(keys)
	for _, k := range keys {
		v := fmt.Sprint(viper.Get(k))
		if strings.HasSuffix(k, "password") && v != "" {
			v = "********"
		}
		fmt.Printf("  %-28s %s\n", k, v)
	}
}
