// Package game drives one interrogation session from briefing to verdict.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/ledger"
	"github.com/myrjola/interrogame/internal/models"
	"github.com/myrjola/interrogame/internal/prompt"
	"github.com/myrjola/interrogame/internal/random"
	"github.com/myrjola/interrogame/internal/reveal"
	"github.com/myrjola/interrogame/internal/scenario"
)

type Phase string

const (
	PhaseBriefing    Phase = "briefing"
	PhaseQuestioning Phase = "questioning"
	PhaseVerdict     Phase = "verdict"
	PhaseFinished    Phase = "finished"
)

// FallbackAnswer stands in for a suspect's reply when the chat service is
// unreachable. It is revealed and recorded like a real answer so the session
// always progresses.
const FallbackAnswer = "...I'm sorry. My mind has gone blank, I really can't remember."

var (
	ErrNoSession       = errors.NewSentinel("no active session")
	ErrWrongPhase      = errors.NewSentinel("operation not allowed in this phase")
	ErrBusy            = errors.NewSentinel("an answer is already in progress")
	ErrEmptyQuestion   = errors.NewSentinel("question text is empty")
	ErrNoQuestionsLeft = errors.NewSentinel("question budget exhausted")
	ErrNoTestimony     = errors.NewSentinel("at least one question must be asked first")
	ErrSkipTooSoon     = errors.NewSentinel("briefing cannot be skipped yet")
)

// Completer produces one suspect reply for a built interrogation request.
// ai.Client satisfies it.
type Completer interface {
	Answer(ctx context.Context, req prompt.Request) (string, error)
}

// Frame is a reveal snapshot forwarded to the display layer. Field names the
// crime-scene fact during the briefing and is "answer" while a suspect speaks.
type Frame struct {
	Field string
	Text  string
}

// FrameSink receives reveal frames. A nil sink drops them, which also makes
// every reveal pause collapse so tests and the JSON API don't wait out the
// typewriter.
type FrameSink func(Frame)

// AnswerField is the Frame.Field used for suspect answers.
const AnswerField = "answer"

// Engine is the session state machine. It owns the testimony ledger and the
// immutable scenario snapshot for the active session and coordinates the chat
// client, the reveal pacing, and the history store.
//
// One Engine drives one player's session at a time. Methods are safe for
// concurrent use; AskQuestion additionally enforces a busy-gate so only one
// question can be in flight.
type Engine struct {
	logger  *slog.Logger
	source  *scenario.Source
	chat    Completer
	history *history.Store
	sink    FrameSink
	now     func() time.Time

	mu              sync.Mutex
	phase           Phase
	sessionID       string
	startedAt       time.Time
	scenario        models.Scenario
	settings        models.GameplaySettings
	ledger          *ledger.Ledger
	questionsUsed   int
	busy            bool
	briefingStarted time.Time
	briefingSkip    chan struct{}
}

func NewEngine(
	source *scenario.Source,
	chat Completer,
	historyStore *history.Store,
	sink FrameSink,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		logger:  logger.With("source", "GameEngine"),
		source:  source,
		chat:    chat,
		history: historyStore,
		sink:    sink,
		now:     time.Now,
	}
}

// State is a read-only snapshot of the session for the display layer.
type State struct {
	SessionID          string
	Phase              Phase
	Scenario           models.Scenario
	Suspects           []models.Suspect
	QuestionsUsed      int
	QuestionsRemaining int
	Testimonies        []models.Testimony
}

// Start begins a new session. An empty scenarioID picks a random scenario.
// Any previous session state is discarded.
func (e *Engine) Start(scenarioID string) (State, error) {
	scen, roster, err := e.source.Current(scenarioID)
	if err != nil {
		return State{}, errors.Wrap(err, "load scenario")
	}
	settings, err := e.source.Settings()
	if err != nil {
		return State{}, errors.Wrap(err, "load gameplay settings")
	}

	suffix, err := random.Letters(9)
	if err != nil {
		return State{}, errors.Wrap(err, "generate session id")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = fmt.Sprintf("game_%d_%s", e.now().UnixMilli(), suffix)
	e.startedAt = e.now()
	e.scenario = scen
	e.settings = settings
	e.ledger = ledger.New(roster)
	e.questionsUsed = 0
	e.busy = false
	e.phase = PhaseBriefing
	e.briefingStarted = e.now()
	e.briefingSkip = make(chan struct{})

	e.logger.LogAttrs(context.Background(), slog.LevelInfo, "session started",
		slog.String("session_id", e.sessionID), slog.String("scenario_id", scen.ID))

	return e.stateLocked(), nil
}

// State returns a snapshot of the active session.
func (e *Engine) State() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == "" {
		return State{}, ErrNoSession
	}
	return e.stateLocked(), nil
}

func (e *Engine) stateLocked() State {
	return State{
		SessionID:          e.sessionID,
		Phase:              e.phase,
		Scenario:           e.scenario,
		Suspects:           e.ledger.Roster(),
		QuestionsUsed:      e.questionsUsed,
		QuestionsRemaining: e.settings.MaxQuestions - e.questionsUsed,
		Testimonies:        e.ledger.ViewFor(ledger.All),
	}
}

// RunBriefing reveals the crime-scene facts one field at a time in their
// fixed order and then moves the session to the questioning phase. It blocks
// until the briefing finishes, is skipped, or ctx is cancelled.
func (e *Engine) RunBriefing(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != PhaseBriefing {
		e.mu.Unlock()
		return errors.Wrap(ErrWrongPhase, "run briefing", slog.String("phase", string(e.phase)))
	}
	scene := e.scenario.CrimeScene
	settings := e.settings
	skip := e.briefingSkip
	e.mu.Unlock()

	pacing := reveal.NewPacing(settings.TypewriterPacing)

	// Without a sink nobody sees the typewriter, so the briefing completes
	// immediately instead of sleeping through every frame.
	if e.sink == nil {
		e.finishBriefing(skip)
		return nil
	}

	e.pause(ctx, settings.Delays.GameStart, skip)
	for _, field := range scene.Fields() {
		rev := reveal.New(field.Text, pacing, 0)
		frames := rev.Start(ctx)
		cancelSkipWatch := watchSkip(skip, rev)
		for text := range frames {
			e.emit(Frame{Field: field.Label, Text: text})
		}
		cancelSkipWatch()
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "briefing cancelled")
		}
		e.pause(ctx, settings.Delays.FieldComplete, skip)
	}
	e.pause(ctx, settings.Delays.BriefingDone, skip)
	e.pause(ctx, settings.Delays.PhaseTransition, skip)

	e.finishBriefing(skip)
	return nil
}

// finishBriefing moves the session to questioning unless it was torn down or
// replaced while the briefing ran. The skip channel identifies the session the
// briefing was started for: Start allocates a fresh one every time, so a stale
// briefing goroutine must not touch the current session's phase.
func (e *Engine) finishBriefing(skip chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhaseBriefing && e.briefingSkip == skip {
		e.phase = PhaseQuestioning
	}
}

// watchSkip forwards a briefing-wide skip to the reveal in progress. The
// returned stop function must be called once the reveal has drained.
func watchSkip(skip chan struct{}, rev *reveal.Reveal) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-skip:
			rev.Skip()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// SkipBriefing jumps the briefing to its end. It is refused before the
// configured minimum elapsed time so an accidental tap cannot blow past the
// scene report.
func (e *Engine) SkipBriefing() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseBriefing {
		return errors.Wrap(ErrWrongPhase, "skip briefing", slog.String("phase", string(e.phase)))
	}
	if e.now().Sub(e.briefingStarted) < e.settings.Delays.SkipAllow {
		return ErrSkipTooSoon
	}
	select {
	case <-e.briefingSkip:
		// Already skipped.
	default:
		close(e.briefingSkip)
	}
	return nil
}

// Answer is the outcome of one accepted question.
type Answer struct {
	SuspectID          int
	Question           string
	Text               string
	Fallback           bool
	QuestionsRemaining int
	Phase              Phase
}

// AskQuestion submits one question to a suspect. While the answer is being
// fetched and revealed, further submissions fail with ErrBusy. A chat service
// failure is absorbed: the fallback answer is revealed and recorded instead,
// and the question still consumes exactly one budget slot. The budget is
// decremented only after the testimony is recorded; when it hits the limit
// the session moves to the verdict phase.
func (e *Engine) AskQuestion(ctx context.Context, suspectID int, question string) (Answer, error) {
	question = strings.TrimSpace(question)

	e.mu.Lock()
	if e.phase == "" {
		e.mu.Unlock()
		return Answer{}, ErrNoSession
	}
	if e.phase != PhaseQuestioning {
		e.mu.Unlock()
		return Answer{}, errors.Wrap(ErrWrongPhase, "ask question", slog.String("phase", string(e.phase)))
	}
	if e.busy {
		e.mu.Unlock()
		return Answer{}, ErrBusy
	}
	if question == "" {
		e.mu.Unlock()
		return Answer{}, ErrEmptyQuestion
	}
	if e.questionsUsed >= e.settings.MaxQuestions {
		e.mu.Unlock()
		return Answer{}, ErrNoQuestionsLeft
	}
	led := e.ledger
	scen := e.scenario
	settings := e.settings
	if _, err := led.Suspect(suspectID); err != nil {
		e.mu.Unlock()
		return Answer{}, err
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	// The ledger cannot change under us here: the busy-gate guarantees no
	// concurrent writer, so the request sees the state as of submission.
	request, err := prompt.Build(led, scen, suspectID, question)
	if err != nil {
		return Answer{}, err
	}

	fallback := false
	answerText, err := e.chat.Answer(ctx, request)
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "chat service failed, using fallback answer",
			slog.Int("suspect_id", suspectID), errors.SlogError(err))
		answerText = FallbackAnswer
		fallback = true
	}

	e.revealAnswer(ctx, answerText, settings)

	if _, err = led.Record(suspectID, question, answerText); err != nil {
		return Answer{}, errors.Wrap(err, "record testimony")
	}

	e.mu.Lock()
	e.questionsUsed++
	if e.questionsUsed >= e.settings.MaxQuestions {
		e.phase = PhaseVerdict
	}
	answer := Answer{
		SuspectID:          suspectID,
		Question:           question,
		Text:               answerText,
		Fallback:           fallback,
		QuestionsRemaining: e.settings.MaxQuestions - e.questionsUsed,
		Phase:              e.phase,
	}
	e.mu.Unlock()
	return answer, nil
}

func (e *Engine) revealAnswer(ctx context.Context, text string, settings models.GameplaySettings) {
	if e.sink == nil {
		return
	}
	rev := reveal.New(text, reveal.NewPacing(settings.StreamingPacing), 0)
	for frame := range rev.Start(ctx) {
		e.emit(Frame{Field: AnswerField, Text: frame})
	}
	e.pause(ctx, settings.Delays.AnswerComplete, nil)
}

// EndQuestioning moves to the verdict phase before the budget runs out. At
// least one question must have been asked.
func (e *Engine) EndQuestioning() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseQuestioning {
		return errors.Wrap(ErrWrongPhase, "end questioning", slog.String("phase", string(e.phase)))
	}
	if e.busy {
		return ErrBusy
	}
	if e.ledger.Len() == 0 {
		return ErrNoTestimony
	}
	e.phase = PhaseVerdict
	return nil
}

// Verdict is the outcome of the player's accusation.
type Verdict struct {
	Session     models.Session
	Explanation string
}

// Accuse commits to an accusation, assembles the finished session record, and
// appends it to the history. Correctness is always recomputed from the
// scenario, never supplied by the caller.
func (e *Engine) Accuse(ctx context.Context, suspectID int) (Verdict, error) {
	e.mu.Lock()
	if e.phase == "" {
		e.mu.Unlock()
		return Verdict{}, ErrNoSession
	}
	if e.phase != PhaseVerdict {
		e.mu.Unlock()
		return Verdict{}, errors.Wrap(ErrWrongPhase, "accuse", slog.String("phase", string(e.phase)))
	}
	if _, err := e.ledger.Suspect(suspectID); err != nil {
		e.mu.Unlock()
		return Verdict{}, err
	}

	isCorrect := suspectID == e.scenario.GuiltySuspectID
	playTime := int(math.Round(e.now().Sub(e.startedAt).Seconds()))
	session := models.Session{
		ID:                e.sessionID,
		StartedAt:         e.startedAt,
		ScenarioID:        e.scenario.ID,
		SelectedSuspectID: suspectID,
		GuiltySuspectID:   e.scenario.GuiltySuspectID,
		IsCorrect:         isCorrect,
		QuestionsUsed:     e.questionsUsed,
		PlayTimeSeconds:   playTime,
		Testimonies:       e.ledger.ViewFor(ledger.All),
	}

	explanation := e.scenario.Verdicts.Correct
	if !isCorrect {
		if text, ok := e.scenario.Verdicts.Incorrect[suspectID]; ok {
			explanation = text
		}
	}
	e.phase = PhaseFinished
	e.mu.Unlock()

	e.history.Append(ctx, session)

	e.logger.LogAttrs(ctx, slog.LevelInfo, "session finished",
		slog.String("session_id", session.ID),
		slog.Bool("is_correct", session.IsCorrect),
		slog.Int("questions_used", session.QuestionsUsed))

	return Verdict{Session: session, Explanation: explanation}, nil
}

// Teardown discards the session state and drops the content caches, so the
// next Start re-reads the scenario source.
func (e *Engine) Teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.phase = ""
	e.sessionID = ""
	e.ledger = nil
	e.questionsUsed = 0
	e.busy = false
	e.source.ClearCache()
}

func (e *Engine) emit(frame Frame) {
	if e.sink != nil {
		e.sink(frame)
	}
}

// pause waits for d unless the context is cancelled or skip fires. With a nil
// sink there is nobody watching the pacing, so pauses collapse to zero.
func (e *Engine) pause(ctx context.Context, d time.Duration, skip chan struct{}) {
	if e.sink == nil || d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-skip:
	case <-ctx.Done():
	}
}
