package turn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storytalk/internal/domain/story"
	"storytalk/internal/story/audio"
	"storytalk/internal/story/backend"
	"storytalk/internal/story/snapshot"
	"storytalk/internal/story/turn"
	"storytalk/internal/story/view"
)

const (
	userID  = "u1"
	storyID = "s1"
)

func ptr[T any](v T) *T { return &v }

func session(mode story.Mode) backend.Session {
	return backend.Session{UserID: userID, StoryID: storyID, Mode: mode}
}

type fixture struct {
	o *turn.Orchestrator
	b *MockBackend
	v *fakeView
	p *fakePersister
	r *MockRefresher
}

func newFixture(t *testing.T, opts ...func(*turn.Deps, *turn.Options)) *fixture {
	t.Helper()
	f := &fixture{
		b: new(MockBackend),
		v: &fakeView{},
		p: &fakePersister{},
		r: new(MockRefresher),
	}
	deps := turn.Deps{Backend: f.b, View: f.v, Persister: f.p, Refresher: f.r}
	options := turn.Options{MaxWordRetries: 3, AudioWaitTimeout: 2 * time.Second, DisarmDelay: time.Minute}
	for _, fn := range opts {
		fn(&deps, &options)
	}
	f.o = turn.New(deps, options)
	return f
}

func (f *fixture) load(t *testing.T, mode story.Mode, resp story.StateResponse) {
	t.Helper()
	resp.Success = true
	f.b.On("State", mock.Anything, session(mode)).Return(&resp, nil).Once()
	require.NoError(t, f.o.LoadState(context.Background(), userID, storyID, mode))
}

func plainPrompt(prompt string) *story.TurnPayload {
	return &story.TurnPayload{Type: story.TypeUserTurn, Prompt: prompt}
}

func wordFill() *story.TurnPayload {
	return &story.TurnPayload{
		Type:                 story.TypeUserTurn,
		Prompt:               "Fill in the blanks",
		Text:                 "The ___ is in the ___.",
		WordsInDialogue:      []string{"{lizard}", "{library}"},
		OriginalDialogueText: "The lizard is in the library.",
	}
}

func TestLoadState(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshot is never authoritative", func(t *testing.T) {
		f := newFixture(t)
		f.o.RestoreFromSnapshot(snapshot.Snapshot{
			UserID: userID, StoryID: storyID, StoryMode: story.ModeSentence,
			DialogueID: 5, TotalDialogues: 8, Destination: "forest",
		})
		s := f.o.Snapshot()
		assert.Equal(t, 5, s.DialogueIndex)
		assert.True(t, s.Restored)

		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue:       2,
			TotalDialoguesInScene: 6,
			TargetWords:           []string{"lizard", "lion"},
			TargetSounds:          []string{"words_with_l_initial"},
		}})

		s = f.o.Snapshot()
		assert.Equal(t, 2, s.DialogueIndex)
		assert.Equal(t, 6, s.TotalDialogues)
		assert.False(t, s.Restored)
		assert.Equal(t, "forest", s.Destination)
		assert.Equal(t, []string{"l"}, s.TargetSounds)

		saved, ok := f.p.last()
		require.True(t, ok)
		assert.Equal(t, 2, saved.DialogueID)
	})

	t.Run("session not found clears the snapshot", func(t *testing.T) {
		f := newFixture(t)
		f.b.On("State", ctx, session(story.ModeWord)).Return(nil, backend.ErrSessionNotFound).Once()

		err := f.o.LoadState(ctx, userID, storyID, story.ModeWord)

		assert.ErrorIs(t, err, backend.ErrSessionNotFound)
		assert.Equal(t, 1, f.p.cleared)
		assert.False(t, f.o.Snapshot().Active)
	})

	t.Run("restores the last turn with state resources", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{
			StoryInfo: story.StoryInfo{
				CurrentDialogue:       1,
				TotalDialoguesInScene: 4,
				CurrentTurn: &story.TurnPayload{
					Type:        story.TypeUserTurn,
					Prompt:      "Where do you want to go?",
					Interaction: story.InteractionSelectDestination,
				},
			},
			Image:    "scene.png",
			BtnWords: []string{"forest", "beach"},
			BtnImage: []byte(`["f.png","b.png"]`),
		})

		ctrl := f.o.Interaction()
		require.NotNil(t, ctrl)
		assert.Equal(t, []string{"forest", "beach"}, ctrl.Words())
		assert.Equal(t, "f.png", ctrl.Buttons()[0].Image)
		assert.Equal(t, "scene.png", f.v.lastDialogue().Image)
		assert.Equal(t, 1, f.o.Snapshot().DialogueIndex)
	})

	t.Run("keeps pronounced words of the same turn", func(t *testing.T) {
		f := newFixture(t)
		f.o.RestoreFromSnapshot(snapshot.Snapshot{
			UserID: userID, StoryID: storyID, StoryMode: story.ModeWord,
			CurrentWordsInDialogue: []string{"{lizard}", "{library}"},
			PronouncedWords:        []string{"{lizard}"},
		})
		f.load(t, story.ModeWord, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 3, CurrentTurn: wordFill(),
		}})

		s := f.o.Snapshot()
		assert.Equal(t, []string{"{lizard}"}, s.PronouncedWords)
		assert.Equal(t, []string{"{library}"}, s.RemainingWords())
	})
}

func TestAdvanceDialogue(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)

	t.Run("index comes from the server and retries reset", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 4, CurrentTurn: plainPrompt("Where?"),
		}})
		f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "I like it"}).Return(&story.UserInputResponse{
			RetryRequired: true, MissingWords: []string{"home"}, RetryCount: 1, MaxRetries: 3,
		}, nil).Once()
		require.NoError(t, f.o.SubmitInput(ctx, "I like it"))
		require.Equal(t, 1, f.o.Snapshot().RetryCount)
		assert.True(t, f.v.lastControls().Advance)

		f.b.On("NextDialogue", ctx, sess).Return(&story.TurnPayload{
			Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Hello!",
			CurrentDialogue: ptr(3), TotalDialogues: ptr(4),
		}, nil).Once()

		before := f.o.Snapshot().DialogueIndex
		p, err := f.o.AdvanceDialogue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Guide", p.Character)

		s := f.o.Snapshot()
		assert.Equal(t, 3, s.DialogueIndex)
		assert.GreaterOrEqual(t, s.DialogueIndex, before)
		assert.Equal(t, 0, s.RetryCount)
		assert.Equal(t, story.KindCharacterDialogue, f.v.lastDialogue().Kind)
	})

	t.Run("network failure re-enables advance", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 4,
		}})
		f.b.On("NextDialogue", ctx, sess).Return(nil, errors.New("connection refused")).Once()

		_, err := f.o.AdvanceDialogue(ctx)

		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 1, f.o.Snapshot().DialogueIndex)
		assert.True(t, f.v.lastControls().Advance)
		assert.Equal(t, 1, f.v.noticed("Could not load the next dialogue"))
	})

	t.Run("held while audio is generating", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 0, TotalDialoguesInScene: 4,
		}})
		f.b.On("NextDialogue", ctx, sess).Return(&story.TurnPayload{
			Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Hi",
			AudioGenerating: true, CurrentDialogue: ptr(1),
		}, nil).Once()

		_, err := f.o.AdvanceDialogue(ctx)
		require.NoError(t, err)
		assert.False(t, f.v.lastControls().Advance)

		f.o.OnAudioStatus(story.AudioStatus{AudioGenerating: true, CurrentAudioTask: "Guide"})
		assert.False(t, f.v.lastControls().Advance)
		assert.Equal(t, "Guide", f.o.Snapshot().CurrentAudioTask)

		f.o.OnAudioStatus(story.AudioStatus{AudioGenerating: false})
		assert.True(t, f.v.lastControls().Advance)
	})

	t.Run("error turns leave state alone", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 2, TotalDialoguesInScene: 4, CurrentTurn: plainPrompt("Where?"),
		}})
		f.b.On("NextDialogue", ctx, sess).Return(&story.TurnPayload{
			Type: story.TypeError, Message: "Story not found",
		}, nil).Once()

		_, err := f.o.AdvanceDialogue(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Where?", f.o.Snapshot().LastTurn.Prompt)
		assert.Equal(t, 1, f.v.noticed("Story not found"))
	})

	t.Run("scene complete enables next scene", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 3, TotalDialoguesInScene: 4,
		}})
		f.b.On("NextDialogue", ctx, sess).Return(&story.TurnPayload{Type: story.TypeSceneComplete}, nil).Once()

		_, err := f.o.AdvanceDialogue(ctx)
		require.NoError(t, err)

		c := f.v.lastControls()
		assert.False(t, c.Advance)
		assert.True(t, c.NextScene)
		assert.Equal(t, 1, f.v.noticed("Current scene is completed!"))
	})
}

func TestWordMode(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeWord)

	load := func(t *testing.T, f *fixture) {
		f.load(t, story.ModeWord, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 3, CurrentTurn: wordFill(),
		}})
	}

	t.Run("all blanks filled completes once", func(t *testing.T) {
		f := newFixture(t)
		load(t, f)
		f.b.On("SpeakChildrensVoice", ctx, sess, "The lizard is in the library.").Return(nil).Once()
		f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "lizard library"}).Return(&story.UserInputResponse{
			Success: true,
			NextDialogue: &story.TurnPayload{
				Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Well done!",
				CurrentDialogue: ptr(2),
			},
		}, nil).Once()

		require.NoError(t, f.o.SubmitInput(ctx, "LIZARD"))
		s := f.o.Snapshot()
		assert.Equal(t, []string{"{lizard}"}, s.PronouncedWords)
		assert.Subset(t, s.CurrentWordsInDialogue, s.PronouncedWords)
		d := f.v.lastDialogue()
		assert.Equal(t, "The lizard is in the ___.", view.PlainText(d.Tokens))
		require.Len(t, d.Choices, 1)
		assert.Equal(t, "library", d.Choices[0].Label)

		require.NoError(t, f.o.SubmitInput(ctx, " {Library} "))

		f.b.AssertNumberOfCalls(t, "SubmitInput", 1)
		f.b.AssertNumberOfCalls(t, "SpeakChildrensVoice", 1)
		f.b.AssertNotCalled(t, "WordModeRetryAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1, f.v.noticed("All words completed! Moving to next dialogue."))

		s = f.o.Snapshot()
		assert.Equal(t, 2, s.DialogueIndex)
		assert.Empty(t, s.CurrentWordsInDialogue)
		assert.Empty(t, s.PronouncedWords)
	})

	t.Run("mismatch retry ceiling", func(t *testing.T) {
		f := newFixture(t)
		load(t, f)
		for i := 1; i <= 3; i++ {
			f.b.On("WordModeRetryAudio", ctx, sess, []string{"lizard", "library"}, "castle", i).Return(nil).Once()
		}

		for i := 0; i < 4; i++ {
			require.NoError(t, f.o.SubmitInput(ctx, "castle"))
		}

		f.b.AssertNumberOfCalls(t, "WordModeRetryAudio", 3)
		f.b.AssertExpectations(t)
		assert.Equal(t, 1, f.v.noticed("Please pronounce one of the highlighted words."))
		assert.Equal(t, 3, f.v.noticed("Try again! Say one of these words: lizard, library."))

		s := f.o.Snapshot()
		assert.Equal(t, 4, s.WordModeRetryCount)
		assert.Empty(t, s.PronouncedWords)
	})

	t.Run("repeating a filled word is not a mismatch", func(t *testing.T) {
		f := newFixture(t)
		load(t, f)

		require.NoError(t, f.o.SubmitInput(ctx, "lizard"))
		require.NoError(t, f.o.SubmitInput(ctx, "Lizard"))

		s := f.o.Snapshot()
		assert.Equal(t, []string{"{lizard}"}, s.PronouncedWords)
		assert.Equal(t, 0, s.WordModeRetryCount)
		assert.LessOrEqual(t, len(s.PronouncedWords), len(s.CurrentWordsInDialogue))
		f.b.AssertNotCalled(t, "WordModeRetryAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completion waits for audio to finish", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeWord, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 3, CurrentTurn: wordFill(), AudioGenerating: true,
		}})
		f.b.On("SpeakChildrensVoice", mock.Anything, sess, "line").Return(nil).Once()
		f.b.On("SubmitInput", mock.Anything, sess, backend.Input{}).Return(&story.UserInputResponse{Success: true}, nil).Once()

		done := make(chan error, 1)
		go func() { done <- f.o.CompleteWordTurn(ctx, "line") }()

		select {
		case <-done:
			t.Fatal("completion did not wait for audio")
		case <-time.After(50 * time.Millisecond):
		}

		f.o.OnAudioStatus(story.AudioStatus{AudioGenerating: false})
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("completion did not resume after the audio finished")
		}
		assert.Equal(t, 0, f.v.noticed("taking too long"))
		f.b.AssertExpectations(t)
	})

	t.Run("completion proceeds after the timeout", func(t *testing.T) {
		f := newFixture(t, func(_ *turn.Deps, o *turn.Options) { o.AudioWaitTimeout = 30 * time.Millisecond })
		f.load(t, story.ModeWord, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 3, CurrentTurn: wordFill(), AudioGenerating: true,
		}})
		f.b.On("SpeakChildrensVoice", ctx, sess, "line").Return(nil).Once()
		f.b.On("SubmitInput", ctx, sess, backend.Input{}).Return(&story.UserInputResponse{Success: true}, nil).Once()

		require.NoError(t, f.o.CompleteWordTurn(ctx, "line"))
		assert.Equal(t, 1, f.v.noticed("Audio generation taking too long, proceeding..."))
		f.b.AssertExpectations(t)
	})
}

func TestWordInputDuringLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.load(t, story.ModeWord, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 3, CurrentTurn: wordFill(),
	}})
	f.b.On("WordModeRetryAudio", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.b.On("Logout", ctx, userID).Return(nil).Once()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if errors.Is(f.o.SubmitInput(ctx, "castle"), turn.ErrNoSession) {
				return
			}
		}
	}()

	require.NoError(t, f.o.Logout(ctx, userID))
	<-done

	s := f.o.Snapshot()
	assert.False(t, s.Active)
	assert.Nil(t, s.LastTurn)
}

func TestSentenceRetryScenario(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	f := newFixture(t)
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 5, CurrentTurn: plainPrompt("Where do you want to go?"),
	}})

	f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "I want to go home"}).Return(&story.UserInputResponse{
		Success: false, RetryRequired: true, MissingWords: []string{"home"}, RetryCount: 1, MaxRetries: 3,
	}, nil).Once()

	require.NoError(t, f.o.SubmitInput(ctx, "I want to go home"))

	s := f.o.Snapshot()
	assert.Equal(t, 1, s.RetryCount)
	assert.Equal(t, "Where do you want to go?", s.LastTurn.Prompt)
	assert.Equal(t, 1, s.DialogueIndex)
	assert.Equal(t, 1, f.v.noticed("Please include these target words in your response: home. Try again!"))
	assert.Equal(t, 0, f.v.noticed("Last attempt"))
	assert.True(t, f.v.lastControls().Input)

	f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "I want to go home now", RetryCount: 1}).Return(&story.UserInputResponse{
		Success: true,
		NextDialogue: &story.TurnPayload{
			Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Great, let's go home!",
		},
	}, nil).Once()

	require.NoError(t, f.o.SubmitInput(ctx, "I want to go home now"))

	s = f.o.Snapshot()
	assert.Equal(t, 0, s.RetryCount)
	d := f.v.lastDialogue()
	assert.Equal(t, story.KindCharacterDialogue, d.Kind)
	assert.Equal(t, "Guide", d.Character)
	assert.Equal(t, "Great, let's go home!", view.PlainText(d.Tokens))
	f.b.AssertExpectations(t)
}

func TestSentenceRetryNotices(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)

	tests := []struct {
		name string
		resp story.UserInputResponse
		want string
	}{
		{
			name: "last attempt",
			resp: story.UserInputResponse{RetryRequired: true, MissingWords: []string{"home", "go"}, RetryCount: 2, MaxRetries: 3},
			want: "Please include these target words in your response: home, go. Try again! (Last attempt)",
		},
		{
			name: "audio feedback",
			resp: story.UserInputResponse{RetryRequired: true, MissingWords: []string{"home"}, RetryCount: 1, MaxRetries: 3, AudioFeedbackStarted: true},
			want: "🎵 Listen for instructions! Please include these words: home",
		},
		{
			name: "audio feedback on the last attempt",
			resp: story.UserInputResponse{RetryRequired: true, MissingWords: []string{"home"}, RetryCount: 4, MaxRetries: 5, AudioFeedbackStarted: true},
			want: "🎵 Listen for instructions! Please include these words: home (Last attempt - we'll continue after this)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
				CurrentDialogue: 1, TotalDialoguesInScene: 5, CurrentTurn: plainPrompt("Where?"),
			}})
			resp := tt.resp
			f.b.On("SubmitInput", ctx, sess, mock.Anything).Return(&resp, nil).Once()

			require.NoError(t, f.o.SubmitInput(ctx, "hello"))
			assert.Equal(t, 1, f.v.noticed(tt.want))
			assert.Equal(t, tt.resp.RetryCount, f.o.Snapshot().RetryCount)
		})
	}
}

func TestSubmitInputGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.o.SubmitInput(ctx, "hello"), turn.ErrNoSession)
	assert.ErrorIs(t, f.o.SubmitInput(ctx, "   "), turn.ErrEmptyInput)

	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 5,
		CurrentTurn: &story.TurnPayload{Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Hi"},
	}})
	assert.ErrorIs(t, f.o.SubmitInput(ctx, "hello"), turn.ErrNoUserTurn)
	assert.False(t, f.v.lastControls().Input)
}

func TestNextScene(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	atEnd := story.StateResponse{StoryInfo: story.StoryInfo{CurrentDialogue: 4, TotalDialoguesInScene: 4}}

	t.Run("moves to the next scene", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, atEnd)
		require.True(t, f.v.lastControls().NextScene)

		f.b.On("NextScene", ctx, sess).Return(&story.NextSceneResponse{
			Success: true,
			Message: "Moved to scene 2",
			CurrentScene: &story.Scene{
				ID:                "scene2",
				DialogueTemplates: []map[string]any{{}, {}, {}},
			},
		}, nil).Once()
		f.r.On("RequestStoryUpdate").Return(nil).Once()

		require.NoError(t, f.o.NextScene(ctx))

		s := f.o.Snapshot()
		assert.Equal(t, "scene2", s.Scene.ID)
		assert.Equal(t, 0, s.DialogueIndex)
		assert.Equal(t, 3, s.TotalDialogues)
		assert.Nil(t, s.LastTurn)
		assert.True(t, f.v.lastControls().Advance)
		assert.Equal(t, 1, f.v.noticed("Moved to next scene!"))
		f.r.AssertExpectations(t)
	})

	t.Run("story completed", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, atEnd)
		f.b.On("NextScene", ctx, sess).Return(&story.NextSceneResponse{
			Success: true, Message: "Story completed",
		}, nil).Once()

		require.NoError(t, f.o.NextScene(ctx))

		c := f.v.lastControls()
		assert.True(t, c.StoryComplete)
		assert.False(t, c.Advance)
		assert.False(t, c.NextScene)
		assert.Equal(t, 1, f.v.noticed("🎉 Story completed!"))
		f.r.AssertNotCalled(t, "RequestStoryUpdate")
	})

	t.Run("failure re-enables the control", func(t *testing.T) {
		f := newFixture(t)
		f.load(t, story.ModeSentence, atEnd)
		f.b.On("NextScene", ctx, sess).Return(nil, errors.New("timeout")).Once()

		assert.Error(t, f.o.NextScene(ctx))
		assert.True(t, f.v.lastControls().NextScene)
	})
}

func TestServerPush(t *testing.T) {
	f := newFixture(t)
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 4, TargetWords: []string{"lion"},
	}})

	t.Run("merges only present fields", func(t *testing.T) {
		f.o.OnServerPush(story.StoryUpdate{StoryID: storyID, CurrentDialogue: ptr(2)})
		s := f.o.Snapshot()
		assert.Equal(t, 2, s.DialogueIndex)
		assert.Equal(t, 4, s.TotalDialogues)
		assert.Equal(t, []string{"lion"}, s.TargetWords)
	})

	t.Run("story info replaces targets", func(t *testing.T) {
		f.o.OnServerPush(story.StoryUpdate{StoryInfo: &story.StoryInfoPush{
			TargetWords:  []string{"lizard", "ladder"},
			TargetSounds: []string{"words_with_l_initial"},
		}})
		s := f.o.Snapshot()
		assert.Equal(t, []string{"lizard", "ladder"}, s.OriginalTargetWords)
		assert.Equal(t, []string{"l"}, s.TargetSounds)
	})

	t.Run("audio flags gate advance", func(t *testing.T) {
		f.o.OnServerPush(story.StoryUpdate{AudioGenerating: ptr(true), CurrentAudioTask: ptr("Guide")})
		assert.False(t, f.v.lastControls().Advance)

		f.o.OnServerPush(story.StoryUpdate{StoryInfo: &story.StoryInfoPush{AudioGenerating: ptr(false)}})
		assert.True(t, f.v.lastControls().Advance)
		assert.Empty(t, f.o.Snapshot().CurrentAudioTask)
	})

	t.Run("ignores other stories", func(t *testing.T) {
		f.o.OnServerPush(story.StoryUpdate{StoryID: "other", CurrentDialogue: ptr(9)})
		assert.Equal(t, 2, f.o.Snapshot().DialogueIndex)
	})
}

func TestClickInteraction(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	f := newFixture(t)
	f.b.On("PronounceWord", mock.Anything, sess, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 4,
		CurrentTurn: &story.TurnPayload{
			Type:        story.TypeUserTurn,
			Prompt:      "What can you see?",
			Interaction: story.InteractionClick,
			BtnWords:    []string{"apple", "ball"},
		},
	}})
	assert.False(t, f.v.lastControls().Advance)
	assert.False(t, f.v.lastControls().Input)

	for _, w := range []string{"apple", "ball"} {
		sentence := "I can see " + w + "."
		f.b.On("SubmitInput", ctx, sess, backend.Input{Text: sentence}).Return(&story.UserInputResponse{Success: true}, nil).Once()

		require.NoError(t, f.o.ClickItem(ctx, w))
		prompt, ok := f.o.Prompt()
		assert.False(t, ok, prompt)

		require.NoError(t, f.o.ClickItem(ctx, w))
		prompt, ok = f.o.Prompt()
		require.True(t, ok)
		assert.Equal(t, sentence, prompt)

		require.NoError(t, f.o.ConfirmPronunciation(ctx, ""))
	}

	assert.True(t, f.v.lastControls().Advance)
	assert.Equal(t, 1, f.v.noticed("🎉 All items practiced! You can continue to next dialogue."))
}

func TestDestinationInteraction(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	f := newFixture(t)
	f.b.On("PronounceWord", mock.Anything, sess, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 4,
		CurrentTurn: &story.TurnPayload{
			Type:        story.TypeUserTurn,
			Prompt:      "Where do you want to go?",
			Interaction: story.InteractionSelectDestination,
			BtnWords:    []string{"forest", "beach"},
		},
	}})

	require.NoError(t, f.o.ClickItem(ctx, "forest"))
	require.NoError(t, f.o.ClickItem(ctx, "forest"))
	f.b.AssertNotCalled(t, "SelectDestination", mock.Anything, mock.Anything, mock.Anything)

	f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "I want to go forest."}).Return(&story.UserInputResponse{Success: true}, nil).Once()
	f.b.On("SelectDestination", ctx, sess, "forest").Return(nil).Once()

	require.NoError(t, f.o.ConfirmPronunciation(ctx, "I want to go forest."))

	f.b.AssertNumberOfCalls(t, "SelectDestination", 1)
	assert.Equal(t, "forest", f.o.Snapshot().Destination)
	assert.Equal(t, 1, f.v.noticed(`✅ "forest" selected!`))

	saved, ok := f.p.last()
	require.True(t, ok)
	assert.Equal(t, "forest", saved.Destination)
}

func TestDestinationInteractionRetry(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	destination := story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 4,
		CurrentTurn: &story.TurnPayload{
			Type:        story.TypeUserTurn,
			Prompt:      "Where do you want to go?",
			Interaction: story.InteractionSelectDestination,
			BtnWords:    []string{"forest", "beach"},
		},
	}}

	t.Run("failed selection can be chosen again", func(t *testing.T) {
		f := newFixture(t)
		f.b.On("PronounceWord", mock.Anything, sess, mock.Anything, mock.Anything).Return(nil).Maybe()
		f.load(t, story.ModeSentence, destination)

		require.NoError(t, f.o.ClickItem(ctx, "forest"))
		require.NoError(t, f.o.ClickItem(ctx, "forest"))

		f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "I want to go forest."}).Return(&story.UserInputResponse{Success: true}, nil).Twice()
		f.b.On("SelectDestination", ctx, sess, "forest").Return(errors.New("network down")).Once()

		require.Error(t, f.o.ConfirmPronunciation(ctx, ""))
		assert.Equal(t, 1, f.v.noticed("Could not save your choice: network down"))
		assert.Empty(t, f.o.Snapshot().Destination)
		assert.Len(t, f.v.interaction, 2)

		require.NoError(t, f.o.ClickItem(ctx, "forest"))
		require.NoError(t, f.o.ClickItem(ctx, "forest"))

		f.b.On("SelectDestination", ctx, sess, "forest").Return(nil).Once()
		require.NoError(t, f.o.ConfirmPronunciation(ctx, ""))

		assert.Equal(t, "forest", f.o.Snapshot().Destination)
		f.b.AssertNumberOfCalls(t, "SelectDestination", 2)
	})

	t.Run("cancelled prompt can be chosen again", func(t *testing.T) {
		f := newFixture(t)
		f.b.On("PronounceWord", mock.Anything, sess, mock.Anything, mock.Anything).Return(nil).Maybe()
		f.load(t, story.ModeSentence, destination)

		require.NoError(t, f.o.ClickItem(ctx, "forest"))
		require.NoError(t, f.o.ClickItem(ctx, "forest"))
		_, open := f.o.Prompt()
		require.True(t, open)

		f.o.CancelPronunciation()
		_, open = f.o.Prompt()
		assert.False(t, open)
		assert.Len(t, f.v.interaction, 2)

		require.NoError(t, f.o.ClickItem(ctx, "beach"))
		require.NoError(t, f.o.ClickItem(ctx, "beach"))
		sentence, open := f.o.Prompt()
		require.True(t, open)
		assert.Equal(t, "I want to go beach.", sentence)
		f.b.AssertNotCalled(t, "SelectDestination", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSidebar(t *testing.T) {
	ctx := context.Background()
	sess := session(story.ModeSentence)
	f := newFixture(t)
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
		CurrentDialogue: 1, TotalDialoguesInScene: 4,
		TargetWords:     []string{"apple", "lizard"},
		CurrentTurn:     &story.TurnPayload{Type: story.TypeCharacterDialogue, Character: "Guide", Text: "Look, a lizard!"},
	}})

	t.Run("dialogue words come first", func(t *testing.T) {
		assert.Equal(t, []string{"lizard", "apple"}, f.o.Snapshot().TargetWords)
	})

	t.Run("click target word", func(t *testing.T) {
		f.b.On("PronounceWord", ctx, sess, "apple", "a").Return(nil).Once()

		require.NoError(t, f.o.ClickTargetWord(ctx, "{apple}"))

		s := f.o.Snapshot()
		assert.Equal(t, "apple", s.TargetWords[0])
		assert.Equal(t, "a", s.ActiveSound)
		f.b.AssertExpectations(t)
	})

	t.Run("practice word", func(t *testing.T) {
		require.NoError(t, f.o.PracticeWord("{lizard}"))
		f.b.On("SubmitInput", ctx, sess, backend.Input{Text: "lizard", SidebarPractice: true}).
			Return(&story.UserInputResponse{Success: true}, nil).Once()

		require.NoError(t, f.o.ConfirmPronunciation(ctx, "lizard"))

		_, open := f.o.Prompt()
		assert.False(t, open)
		assert.Equal(t, 1, f.v.noticed("🎯 Target word practice completed!"))
		assert.Equal(t, "Guide", f.o.Snapshot().LastTurn.Character)
	})

	t.Run("describe sound", func(t *testing.T) {
		d, _ := view.SoundDescription("l")
		f.b.On("PlaySoundDescription", ctx, sess, d.Gesture).Return(nil).Once()
		require.NoError(t, f.o.DescribeSound(ctx, "l", true))
		assert.Error(t, f.o.DescribeSound(ctx, "q", false))
	})

	t.Run("confirm without prompt", func(t *testing.T) {
		assert.ErrorIs(t, f.o.ConfirmPronunciation(ctx, "x"), turn.ErrNoPrompt)
	})
}

type stubUploader struct {
	text string
}

func (u stubUploader) UploadAndTranscribe(context.Context, backend.Session, []byte, string) (string, error) {
	return u.text, nil
}

func TestRecording(t *testing.T) {
	ctx := context.Background()

	t.Run("transcript becomes pending input", func(t *testing.T) {
		rec := audio.NewMockRecorder([]byte("RIFF"))
		f := newFixture(t, func(d *turn.Deps, _ *turn.Options) {
			d.Transcriber = audio.NewTranscriber(rec, stubUploader{text: "I want to go home"})
		})
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 4, CurrentTurn: plainPrompt("Where?"),
		}})
		assert.True(t, f.v.lastControls().Record)

		require.NoError(t, f.o.StartRecording(ctx))
		assert.True(t, f.v.lastControls().Recording)

		text, err := f.o.StopRecording(ctx)
		require.NoError(t, err)
		assert.Equal(t, "I want to go home", text)
		assert.Equal(t, "I want to go home", f.o.Snapshot().PendingInput)
		assert.False(t, f.v.lastControls().Recording)

		_, err = f.o.StopRecording(ctx)
		assert.ErrorIs(t, err, turn.ErrNotRecording)
	})

	t.Run("unsupported recorder disables the control", func(t *testing.T) {
		rec := audio.NewMockRecorder(nil)
		rec.Unsupported = "Recording needs a microphone"
		f := newFixture(t, func(d *turn.Deps, _ *turn.Options) {
			d.Transcriber = audio.NewTranscriber(rec, stubUploader{})
		})
		f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{
			CurrentDialogue: 1, TotalDialoguesInScene: 4, CurrentTurn: plainPrompt("Where?"),
		}})

		c := f.v.lastControls()
		assert.False(t, c.Record)
		assert.Equal(t, "Recording needs a microphone", c.RecordReason)
		assert.ErrorIs(t, f.o.StartRecording(ctx), audio.ErrRecordingUnsupported)
	})
}

func TestPlayAudio(t *testing.T) {
	player := audio.NewMockPlayer()
	f := newFixture(t, func(d *turn.Deps, _ *turn.Options) { d.Player = player })
	f.b.On("ResolveURL", "/static/audio/a.mp3").Return("http://localhost:5000/static/audio/a.mp3")

	f.o.OnAudioReady(story.AudioDialogue, story.AudioReady{AudioURL: "/static/audio/a.mp3"})
	f.o.OnAudioReady(story.AudioWord, story.AudioReady{})

	assert.Equal(t, []string{"http://localhost:5000/static/audio/a.mp3"}, player.Played())
	assert.True(t, f.v.audio.Playing)

	player.Err = errors.New("decode failed")
	err := f.o.PlayAudio(context.Background(), "/static/audio/a.mp3", story.AudioDialogue)
	assert.Error(t, err)
	assert.Equal(t, 1, f.v.noticed("Could not play audio."))
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.load(t, story.ModeSentence, story.StateResponse{StoryInfo: story.StoryInfo{CurrentDialogue: 1, TotalDialoguesInScene: 4}})
	f.b.On("Logout", ctx, userID).Return(nil).Once()

	require.NoError(t, f.o.Logout(ctx, userID))

	assert.False(t, f.o.Snapshot().Active)
	assert.Equal(t, 1, f.p.cleared)
	assert.False(t, f.v.lastControls().Advance)
}
