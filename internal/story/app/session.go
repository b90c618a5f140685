package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"storytalk/internal/cli/scheme/colours"
	"storytalk/internal/domain/story"
	"storytalk/internal/story/audio"
	"storytalk/internal/story/interaction"
	"storytalk/internal/story/turn"
)

// Driver is the part of the orchestrator the prompt loop uses.
type Driver interface {
	AdvanceDialogue(ctx context.Context) (*story.TurnPayload, error)
	NextScene(ctx context.Context) error
	SubmitInput(ctx context.Context, raw string) error
	ClickTargetWord(ctx context.Context, word string) error
	PracticeWord(word string) error
	ClickItem(ctx context.Context, word string) error
	ExploreEmpty(ctx context.Context) error
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (string, error)
	ConfirmPronunciation(ctx context.Context, transcript string) error
	CancelPronunciation()
	ListenBack(ctx context.Context) error
	DescribeSound(ctx context.Context, sound string, gesture bool) error
	Snapshot() turn.State
	Prompt() (string, bool)
}

var ErrNoSuchChoice = errors.New("no such choice")

// Command is one parsed line of user input.
type Command struct {
	Name string
	Arg  string
}

var (
	commands = []string{
		"next", "scene", "say", "pick", "word", "practice", "click", "tap", "record",
		"confirm", "cancel", "listen", "words", "sound", "status", "help", "quit",
	}
	aliases = map[string]string{
		"n":    "next",
		"r":    "record",
		"?":    "help",
		"q":    "quit",
		"exit": "quit",
	}
)

// ParseCommand splits a line into a command and its argument. Anything
// that does not start with a known command is something to say.
func ParseCommand(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}
	}
	head, rest, _ := strings.Cut(line, " ")
	name := strings.ToLower(head)
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	if !slices.Contains(commands, name) {
		return Command{Name: "say", Arg: line}
	}
	return Command{Name: name, Arg: strings.TrimSpace(rest)}
}

// Session is the interactive prompt loop for one story.
type Session struct {
	driver Driver
	term   *Terminal
	in     io.Reader
	// heard is the last transcript, used by a bare say or confirm.
	heard string
}

func NewSession(driver Driver, term *Terminal, in io.Reader) *Session {
	return &Session{driver: driver, term: term, in: in}
}

func (s *Session) Run(ctx context.Context) {
	printHelp()
	scanner := bufio.NewScanner(s.in)
	for {
		if ctx.Err() != nil {
			return
		}
		colours.Prompt.Print("> ")
		if !scanner.Scan() {
			return
		}
		quit, err := s.Dispatch(ctx, scanner.Text())
		report(err)
		if quit {
			colours.Warning.Println("👋 Your progress is saved. Bye for now!")
			return
		}
	}
}

// Dispatch runs one line of input and reports whether the user asked to quit.
func (s *Session) Dispatch(ctx context.Context, line string) (bool, error) {
	cmd := ParseCommand(line)
	var err error

	switch cmd.Name {
	case "":
	case "quit":
		return true, nil
	case "help":
		printHelp()
	case "status":
		s.term.PrintControls()
	case "words":
		s.term.PrintSidebar()
	case "next":
		_, err = s.driver.AdvanceDialogue(ctx)
	case "scene":
		err = s.driver.NextScene(ctx)
	case "say":
		text := cmd.Arg
		if text == "" {
			text, s.heard = s.heard, ""
		}
		err = s.driver.SubmitInput(ctx, text)
	case "pick":
		err = s.pick(ctx, cmd.Arg)
	case "word":
		err = s.driver.ClickTargetWord(ctx, cmd.Arg)
	case "practice":
		err = s.driver.PracticeWord(cmd.Arg)
	case "click":
		err = s.click(ctx, cmd.Arg)
	case "tap":
		err = s.driver.ExploreEmpty(ctx)
	case "record":
		err = s.toggleRecording(ctx)
	case "confirm":
		text := cmd.Arg
		if text == "" {
			text, s.heard = s.heard, ""
		}
		err = s.driver.ConfirmPronunciation(ctx, text)
	case "cancel":
		s.driver.CancelPronunciation()
	case "listen":
		err = s.driver.ListenBack(ctx)
	case "sound":
		sound := cmd.Arg
		if sound == "" {
			sound = s.term.ActiveSound()
		}
		err = s.driver.DescribeSound(ctx, sound, false)
	}

	return false, err
}

func (s *Session) pick(ctx context.Context, arg string) error {
	word := arg
	if n, err := strconv.Atoi(arg); err == nil {
		w, ok := s.term.Choice(n)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoSuchChoice, n)
		}
		word = w
	}
	return s.driver.SubmitInput(ctx, word)
}

func (s *Session) click(ctx context.Context, arg string) error {
	word := arg
	if n, err := strconv.Atoi(arg); err == nil {
		w, ok := s.term.Button(n)
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoSuchChoice, n)
		}
		word = w
	}
	return s.driver.ClickItem(ctx, word)
}

func (s *Session) toggleRecording(ctx context.Context) error {
	if !s.driver.Snapshot().Recording {
		if err := s.driver.StartRecording(ctx); err != nil {
			return err
		}
		colours.Warning.Println("🔴 Recording... type 'record' again to stop")
		return nil
	}

	text, err := s.driver.StopRecording(ctx)
	if err != nil {
		return err
	}
	s.heard = text
	if _, open := s.driver.Prompt(); open {
		fmt.Println("   Type 'confirm' to send it.")
	} else {
		fmt.Println("   Type 'say' to send it.")
	}
	return nil
}

// report prints guard errors; everything else was already shown by the
// orchestrator.
func report(err error) {
	if err == nil {
		return
	}
	var msg string
	switch {
	case errors.Is(err, turn.ErrEmptyInput), errors.Is(err, audio.ErrRecordingUnsupported):
		return
	case errors.Is(err, turn.ErrBusy):
		msg = "Still working on the last request, please wait."
	case errors.Is(err, turn.ErrNoUserTurn):
		msg = "It is not your turn to speak yet. Type 'next' to continue."
	case errors.Is(err, turn.ErrNoPrompt):
		msg = "There is nothing to confirm."
	case errors.Is(err, turn.ErrNotRecording):
		msg = "Not recording."
	case errors.Is(err, turn.ErrNoSession):
		msg = "No story is active."
	case errors.Is(err, interaction.ErrUnknownItem):
		msg = "That item is not in the picture."
	case errors.Is(err, interaction.ErrAlreadyChosen):
		msg = "A choice was already made."
	case errors.Is(err, interaction.ErrNotExploration):
		msg = "There is nothing to explore here."
	case errors.Is(err, ErrNoSuchChoice):
		msg = "There is no such number on screen."
	default:
		logrus.WithError(err).Debug("Command failed")
	}
	if msg != "" {
		colours.Warning.Printf("⚠️  %s\n", msg)
	}
}

func printHelp() {
	fmt.Println()
	colours.Info.Println("🎮 Commands:")
	fmt.Println("  next              - Continue the story")
	fmt.Println("  scene             - Go to the next scene")
	fmt.Println("  say <text>        - Answer (or just type your answer)")
	fmt.Println("  pick <n|word>     - Say one of the missing words")
	fmt.Println("  word <w>          - Hear a target word")
	fmt.Println("  practice <w>      - Practice a target word")
	fmt.Println("  click <n|item>    - Click an item in the picture (twice to choose)")
	fmt.Println("  tap               - Tap the picture to explore")
	fmt.Println("  record            - Start or stop the microphone")
	fmt.Println("  confirm [text]    - Send what you said for the prompt")
	fmt.Println("  cancel            - Close the prompt")
	fmt.Println("  listen            - Hear your last answer")
	fmt.Println("  words / sound [s] - Show target words or how to make a sound")
	fmt.Println("  status / help / quit")
	fmt.Println()
}
