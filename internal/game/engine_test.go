package game_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/myrjola/interrogame/internal/game"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/kv"
	"github.com/myrjola/interrogame/internal/ledger"
	"github.com/myrjola/interrogame/internal/prompt"
	"github.com/myrjola/interrogame/internal/scenario"
	"github.com/myrjola/interrogame/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

// completerFunc adapts a function to the Completer interface.
type completerFunc func(ctx context.Context, req prompt.Request) (string, error)

func (f completerFunc) Answer(ctx context.Context, req prompt.Request) (string, error) {
	return f(ctx, req)
}

func echoCompleter(_ context.Context, req prompt.Request) (string, error) {
	last := req.Messages[len(req.Messages)-1]
	return "answer to: " + last.Content, nil
}

// testContentFS returns content with two suspects, suspect 2 guilty, a
// two-question budget, and pacing fast enough for tests.
func testContentFS(maxQuestions int, skipAllowMs int) fstest.MapFS {
	return fstest.MapFS{
		"scenarios.json": &fstest.MapFile{Data: []byte(`[{
			"id": "locked-office",
			"title": "Death on the Twentieth Floor",
			"guiltySuspectId": 2,
			"crimeScene": {
				"location": "20th floor",
				"time": "8 PM",
				"victim": "Suzuki",
				"evidence": "locked door",
				"details": "three suspects on camera"
			},
			"verdicts": {
				"correct": "it was the friend all along",
				"incorrect": {"1": "the colleague was innocent"}
			}
		}]`)},
		"suspects.json": &fstest.MapFile{Data: []byte(`[
			{"id": 1, "name": "Colleague", "systemPrompts": {"guilty": "g1", "innocent": "i1"}},
			{"id": 2, "name": "Friend", "systemPrompts": {"guilty": "g2", "innocent": "i2"}}
		]`)},
		"game-settings.json": &fstest.MapFile{Data: []byte(fmt.Sprintf(`{
			"gameplay": {
				"maxQuestions": %d,
				"typewriterSpeed": {"normal": 0, "punctuation": 0, "space": 0, "bracket": 0},
				"streamingSpeed": {"normal": 0, "punctuation": 0, "space": 0},
				"delays": {
					"gameStart": 0, "fieldComplete": 0, "skipAllowTime": %d,
					"briefingComplete": 0, "phaseTransition": 0, "streamingComplete": 0
				}
			}
		}`, maxQuestions, skipAllowMs))},
	}
}

func newTestEngine(t *testing.T, fsys fstest.MapFS, chat game.Completer, sink game.FrameSink) (*game.Engine, *history.Store) {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)

	blobs, err := kv.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, blobs.Close())
	})
	historyStore := history.NewStore(context.Background(), blobs, logger)

	source := scenario.NewSource(fsys, logger)
	return game.NewEngine(source, chat, historyStore, sink, logger), historyStore
}

func startQuestioning(t *testing.T, e *game.Engine) {
	t.Helper()
	_, err := e.Start("locked-office")
	require.NoError(t, err)
	require.NoError(t, e.RunBriefing(context.Background()))
}

func TestEngine_EndToEnd(t *testing.T) {
	t.Parallel()
	e, historyStore := newTestEngine(t, testContentFS(2, 0), completerFunc(echoCompleter), nil)
	ctx := context.Background()

	state, err := e.Start("locked-office")
	require.NoError(t, err)
	require.Equal(t, game.PhaseBriefing, state.Phase)
	require.Equal(t, 2, state.QuestionsRemaining)

	require.NoError(t, e.RunBriefing(ctx))
	state, err = e.State()
	require.NoError(t, err)
	require.Equal(t, game.PhaseQuestioning, state.Phase)

	answer, err := e.AskQuestion(ctx, 1, "where were you?")
	require.NoError(t, err)
	require.Equal(t, "answer to: where were you?", answer.Text)
	require.Equal(t, 1, answer.QuestionsRemaining)
	require.Equal(t, game.PhaseQuestioning, answer.Phase)

	answer, err = e.AskQuestion(ctx, 2, "what did you see?")
	require.NoError(t, err)
	require.Equal(t, 0, answer.QuestionsRemaining)
	require.Equal(t, game.PhaseVerdict, answer.Phase, "exhausting the budget forces the verdict phase")

	_, err = e.AskQuestion(ctx, 1, "one more thing")
	require.ErrorIs(t, err, game.ErrWrongPhase)

	verdict, err := e.Accuse(ctx, 2)
	require.NoError(t, err)
	require.True(t, verdict.Session.IsCorrect)
	require.Equal(t, 2, verdict.Session.QuestionsUsed)
	require.Equal(t, "it was the friend all along", verdict.Explanation)

	testimonies := verdict.Session.Testimonies
	require.Len(t, testimonies, 2)
	require.Equal(t, 1, testimonies[0].SuspectID)
	require.Equal(t, "where were you?", testimonies[0].Question)
	require.Equal(t, 2, testimonies[1].SuspectID)

	stored := historyStore.All()
	require.Len(t, stored, 1)
	require.Equal(t, verdict.Session.ID, stored[0].ID)
	require.True(t, stored[0].IsCorrect)
}

func TestEngine_IncorrectAccusation(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), nil)
	ctx := context.Background()
	startQuestioning(t, e)

	_, err := e.AskQuestion(ctx, 1, "anything to declare?")
	require.NoError(t, err)
	require.NoError(t, e.EndQuestioning())

	verdict, err := e.Accuse(ctx, 1)
	require.NoError(t, err)
	require.False(t, verdict.Session.IsCorrect)
	require.Equal(t, 2, verdict.Session.GuiltySuspectID, "guilty suspect comes from the scenario")
	require.Equal(t, "the colleague was innocent", verdict.Explanation)
}

func TestEngine_ChatFailureFallsBack(t *testing.T) {
	t.Parallel()
	failing := completerFunc(func(_ context.Context, _ prompt.Request) (string, error) {
		return "", fmt.Errorf("connection refused")
	})
	e, _ := newTestEngine(t, testContentFS(2, 0), failing, nil)
	ctx := context.Background()
	startQuestioning(t, e)

	answer, err := e.AskQuestion(ctx, 1, "where were you?")
	require.NoError(t, err, "a chat failure must not surface as an error")
	require.True(t, answer.Fallback)
	require.Equal(t, game.FallbackAnswer, answer.Text)
	require.Equal(t, 1, answer.QuestionsRemaining, "the failed call still consumes exactly one question")

	state, err := e.State()
	require.NoError(t, err)
	require.Len(t, state.Testimonies, 1)
	require.Equal(t, game.FallbackAnswer, state.Testimonies[0].Answer, "the fallback answer is recorded as testimony")
}

func TestEngine_BusyGate(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	inFlight := make(chan struct{})
	var once sync.Once
	slow := completerFunc(func(_ context.Context, _ prompt.Request) (string, error) {
		once.Do(func() { close(inFlight) })
		<-release
		return "done", nil
	})
	e, _ := newTestEngine(t, testContentFS(5, 0), slow, nil)
	ctx := context.Background()
	startQuestioning(t, e)

	errs := make(chan error, 1)
	go func() {
		_, err := e.AskQuestion(ctx, 1, "slow question")
		errs <- err
	}()
	<-inFlight

	_, err := e.AskQuestion(ctx, 2, "interleaved question")
	require.ErrorIs(t, err, game.ErrBusy, "a second question while one is in flight is rejected")

	close(release)
	require.NoError(t, <-errs)

	// The gate opens again once the answer is recorded.
	_, err = e.AskQuestion(ctx, 2, "follow-up")
	require.NoError(t, err)
}

func TestEngine_Validation(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), nil)
	ctx := context.Background()

	_, err := e.AskQuestion(ctx, 1, "too early")
	require.ErrorIs(t, err, game.ErrNoSession)

	_, err = e.Start("locked-office")
	require.NoError(t, err)

	_, err = e.AskQuestion(ctx, 1, "still briefing")
	require.ErrorIs(t, err, game.ErrWrongPhase)

	require.NoError(t, e.RunBriefing(ctx))

	_, err = e.AskQuestion(ctx, 1, "   ")
	require.ErrorIs(t, err, game.ErrEmptyQuestion)

	_, err = e.AskQuestion(ctx, 42, "who are you?")
	require.ErrorIs(t, err, ledger.ErrUnknownSuspect)

	err = e.EndQuestioning()
	require.ErrorIs(t, err, game.ErrNoTestimony, "early termination needs at least one question")

	_, err = e.Accuse(ctx, 1)
	require.ErrorIs(t, err, game.ErrWrongPhase, "accusing is only possible in the verdict phase")
}

func TestEngine_SkipBriefing(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		frames []game.Frame
	)
	sink := func(frame game.Frame) {
		mu.Lock()
		frames = append(frames, frame)
		mu.Unlock()
	}
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), sink)
	_, err := e.Start("locked-office")
	require.NoError(t, err)

	require.NoError(t, e.SkipBriefing())
	require.NoError(t, e.RunBriefing(context.Background()))

	state, err := e.State()
	require.NoError(t, err)
	require.Equal(t, game.PhaseQuestioning, state.Phase)

	// Even a skipped briefing shows the final text of every field in order.
	mu.Lock()
	defer mu.Unlock()
	var fields []string
	seen := map[string]bool{}
	for _, frame := range frames {
		if !seen[frame.Field] {
			seen[frame.Field] = true
			fields = append(fields, frame.Field)
		}
	}
	require.Equal(t, []string{"location", "time", "victim", "evidence", "details"}, fields)
}

func TestEngine_SkipBriefingTooSoon(t *testing.T) {
	t.Parallel()
	// Minimum skip delay of a minute cannot have elapsed.
	e, _ := newTestEngine(t, testContentFS(5, 60000), completerFunc(echoCompleter), nil)
	_, err := e.Start("locked-office")
	require.NoError(t, err)

	require.ErrorIs(t, e.SkipBriefing(), game.ErrSkipTooSoon)
}

func TestEngine_BriefingFrameOrder(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		frames []game.Frame
	)
	sink := func(frame game.Frame) {
		mu.Lock()
		frames = append(frames, frame)
		mu.Unlock()
	}
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), sink)
	_, err := e.Start("locked-office")
	require.NoError(t, err)
	require.NoError(t, e.RunBriefing(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, frames)

	// One field finishes completely before the next starts.
	lastIndex := map[string]int{}
	order := []string{"location", "time", "victim", "evidence", "details"}
	for i, frame := range frames {
		lastIndex[frame.Field] = i
	}
	for i := 1; i < len(order); i++ {
		firstOfNext := -1
		for j, frame := range frames {
			if frame.Field == order[i] {
				firstOfNext = j
				break
			}
		}
		require.Greater(t, firstOfNext, lastIndex[order[i-1]]-1,
			"field %s started before %s finished", order[i], order[i-1])
	}

	// The last frame of each field carries its full text.
	require.Equal(t, "20th floor", finalTextFor(frames, "location"))
	require.Equal(t, "three suspects on camera", finalTextFor(frames, "details"))
}

func finalTextFor(frames []game.Frame, field string) string {
	text := ""
	for _, frame := range frames {
		if frame.Field == field {
			text = frame.Text
		}
	}
	return text
}

// slowBriefingFS slows the typewriter down enough to keep a briefing in
// flight while the test intervenes.
func slowBriefingFS() fstest.MapFS {
	fsys := testContentFS(5, 0)
	fsys["game-settings.json"] = &fstest.MapFile{Data: []byte(`{
		"gameplay": {
			"maxQuestions": 5,
			"typewriterSpeed": {"normal": 20, "punctuation": 20, "space": 20, "bracket": 20},
			"streamingSpeed": {"normal": 0, "punctuation": 0, "space": 0},
			"delays": {
				"gameStart": 0, "fieldComplete": 0, "skipAllowTime": 0,
				"briefingComplete": 0, "phaseTransition": 0, "streamingComplete": 0
			}
		}
	}`)}
	return fsys
}

func TestEngine_TeardownDuringBriefing(t *testing.T) {
	t.Parallel()
	sink := func(game.Frame) {}
	e, _ := newTestEngine(t, slowBriefingFS(), completerFunc(echoCompleter), sink)
	_, err := e.Start("locked-office")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- e.RunBriefing(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	e.Teardown()
	require.NoError(t, <-done)

	// The finished stale briefing must not resurrect the discarded session.
	_, err = e.State()
	require.ErrorIs(t, err, game.ErrNoSession)
}

func TestEngine_RestartDuringBriefing(t *testing.T) {
	t.Parallel()
	sink := func(game.Frame) {}
	e, _ := newTestEngine(t, slowBriefingFS(), completerFunc(echoCompleter), sink)
	first, err := e.Start("locked-office")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- e.RunBriefing(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	second, err := e.Start("locked-office")
	require.NoError(t, err)
	require.NotEqual(t, first.SessionID, second.SessionID)
	require.NoError(t, <-done)

	// The replacement session briefs on its own schedule; the stale briefing
	// finishing must not push it into questioning before its scene is shown.
	state, err := e.State()
	require.NoError(t, err)
	require.Equal(t, second.SessionID, state.SessionID)
	require.Equal(t, game.PhaseBriefing, state.Phase)
}

func TestEngine_BriefingCancelled(t *testing.T) {
	t.Parallel()
	sink := func(game.Frame) {}
	e, _ := newTestEngine(t, slowBriefingFS(), completerFunc(echoCompleter), sink)
	_, err := e.Start("locked-office")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.RunBriefing(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.Error(t, <-done)

	// A cancelled briefing leaves the phase untouched.
	state, err := e.State()
	require.NoError(t, err)
	require.Equal(t, game.PhaseBriefing, state.Phase)
}

func TestEngine_Teardown(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), nil)
	startQuestioning(t, e)

	e.Teardown()
	_, err := e.State()
	require.ErrorIs(t, err, game.ErrNoSession)

	// A new session can start after teardown.
	state, err := e.Start("locked-office")
	require.NoError(t, err)
	require.Equal(t, game.PhaseBriefing, state.Phase)
}

func TestEngine_PlayTime(t *testing.T) {
	t.Parallel()
	e, _ := newTestEngine(t, testContentFS(5, 0), completerFunc(echoCompleter), nil)
	ctx := context.Background()
	startQuestioning(t, e)

	_, err := e.AskQuestion(ctx, 1, "quick one")
	require.NoError(t, err)
	require.NoError(t, e.EndQuestioning())

	start := time.Now()
	verdict, err := e.Accuse(ctx, 2)
	require.NoError(t, err)
	require.GreaterOrEqual(t, verdict.Session.PlayTimeSeconds, 0)
	require.LessOrEqual(t, verdict.Session.PlayTimeSeconds, int(time.Since(start).Seconds())+2)
	require.False(t, verdict.Session.StartedAt.IsZero())
}
