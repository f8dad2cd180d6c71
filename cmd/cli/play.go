package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/interrogame/internal/ai"
	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/game"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/kv"
	"github.com/myrjola/interrogame/internal/logging"
	"github.com/myrjola/interrogame/internal/scenario"
	"github.com/spf13/cobra"
)

var gameGroup = &cobra.Group{
	ID:    "game",
	Title: "Game operations",
}

var playCmd = &cobra.Command{
	Use:     "play [scenario-id]",
	GroupID: "game",
	Short:   "Play an interrogation in the terminal",
	Long: `Runs one full session in the terminal: the crime scene briefing,
up to the question budget of interrogation, and the accusation. The finished
session is appended to the same history the server uses.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		scenarioID := ""
		if len(args) > 0 {
			scenarioID = args[0]
		}
		return play(scenarioID)
	},
}

// terminalSink types reveal frames straight to the terminal. Frames are
// cumulative prefixes, so only the new suffix is printed.
type terminalSink struct {
	mu    sync.Mutex
	out   io.Writer
	field string
	last  string
}

func (s *terminalSink) emit(frame game.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame.Field != s.field {
		if s.field != "" {
			_, _ = fmt.Fprintln(s.out)
		}
		if frame.Field != game.AnswerField {
			_, _ = fmt.Fprintf(s.out, "%s: ", strings.ToUpper(frame.Field[:1])+frame.Field[1:])
		}
		s.field = frame.Field
		s.last = ""
	}
	if strings.HasPrefix(frame.Text, s.last) {
		_, _ = fmt.Fprint(s.out, frame.Text[len(s.last):])
	} else {
		_, _ = fmt.Fprint(s.out, frame.Text)
	}
	s.last = frame.Text
}

func play(scenarioID string) error {
	ctx := context.Background()
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	blobs, err := kv.NewStore(getenv("INTERROGAME_SQLITE_URL", "./interrogame.sqlite"))
	if err != nil {
		return errors.Wrap(err, "open blob store")
	}
	defer func() {
		_ = blobs.Close()
	}()
	historyStore := history.NewStore(ctx, blobs, logger)

	var contentFS fs.FS = scenario.DefaultFS()
	if dir := os.Getenv("INTERROGAME_CONTENT_DIR"); dir != "" {
		contentFS = os.DirFS(dir)
	}
	source := scenario.NewSource(contentFS, logger)

	timeout := 30 * time.Second
	if raw := os.Getenv("INTERROGAME_AI_TIMEOUT"); raw != "" {
		if parsed, parseErr := time.ParseDuration(raw); parseErr == nil {
			timeout = parsed
		}
	}
	chat := ai.NewClient(ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("INTERROGAME_AI_BASE_URL"),
		Model:   os.Getenv("INTERROGAME_AI_MODEL"),
		Timeout: timeout,
	})

	sink := &terminalSink{out: os.Stdout}
	engine := game.NewEngine(source, &chat, historyStore, sink.emit, logger)

	state, err := engine.Start(scenarioID)
	if err != nil {
		return errors.Wrap(err, "start session")
	}

	fmt.Printf("=== %s ===\n", state.Scenario.Title)
	if state.Scenario.Description != "" {
		fmt.Println(state.Scenario.Description)
	}
	fmt.Println()

	if err = engine.RunBriefing(ctx); err != nil {
		return errors.Wrap(err, "run briefing")
	}
	fmt.Println()
	fmt.Println()

	fmt.Println("Suspects:")
	for _, suspect := range state.Suspects {
		fmt.Printf("  [%d] %s - %s\n", suspect.ID, suspect.Name, suspect.Description)
	}
	fmt.Println()
	fmt.Println(`Ask with "<suspect #> <question>", or type "end" to accuse.`)

	reader := bufio.NewReader(os.Stdin)
	if err = questionLoop(ctx, engine, reader); err != nil {
		return err
	}
	return accuseLoop(ctx, engine, reader)
}

func questionLoop(ctx context.Context, engine *game.Engine, reader *bufio.Reader) error {
	for {
		state, err := engine.State()
		if err != nil {
			return errors.Wrap(err, "session state")
		}
		if state.Phase != game.PhaseQuestioning {
			return nil
		}

		fmt.Printf("\n[%d question(s) left] > ", state.QuestionsRemaining)
		line, err := reader.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read question")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "end" {
			if err = engine.EndQuestioning(); err != nil {
				fmt.Println(err)
				continue
			}
			return nil
		}

		suspectID, question, ok := splitQuestion(line)
		if !ok {
			fmt.Println(`Ask with "<suspect #> <question>", e.g. "1 Where were you at 8 PM?"`)
			continue
		}

		if _, err = engine.AskQuestion(ctx, suspectID, question); err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println()
	}
}

func accuseLoop(ctx context.Context, engine *game.Engine, reader *bufio.Reader) error {
	for {
		fmt.Print("\nWho did it? Enter the suspect number: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return errors.Wrap(err, "read accusation")
		}
		suspectID, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			fmt.Println("Enter the suspect's number.")
			continue
		}

		verdict, err := engine.Accuse(ctx, suspectID)
		if err != nil {
			fmt.Println(err)
			continue
		}

		fmt.Println()
		if verdict.Session.IsCorrect {
			fmt.Println("Case closed! You got the right suspect.")
		} else {
			fmt.Println("Wrong suspect. The culprit walks free.")
		}
		fmt.Println(verdict.Explanation)
		fmt.Printf("\nQuestions used: %d, play time: %ds\n",
			verdict.Session.QuestionsUsed, verdict.Session.PlayTimeSeconds)
		return nil
	}
}

// splitQuestion parses "<suspect #> <question text>".
func splitQuestion(line string) (int, string, bool) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	suspectID, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	question := strings.TrimSpace(parts[1])
	if question == "" {
		return 0, "", false
	}
	return suspectID, question, true
}
