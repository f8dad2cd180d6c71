package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/game"
	"github.com/myrjola/interrogame/internal/models"
)

// scenarioJSON is the client-facing view of a scenario. The guilty suspect and
// the verdict texts stay server-side until the accusation.
type scenarioJSON struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Background  models.Background `json:"background"`
	CrimeScene  models.CrimeScene `json:"crimeScene"`
}

// suspectJSON is the client-facing view of a suspect, without the prompts.
type suspectJSON struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
}

type stateJSON struct {
	SessionID          string             `json:"sessionId"`
	Phase              game.Phase         `json:"phase"`
	Scenario           scenarioJSON       `json:"scenario"`
	Suspects           []suspectJSON      `json:"suspects"`
	QuestionsUsed      int                `json:"questionsUsed"`
	QuestionsRemaining int                `json:"questionsRemaining"`
	Testimonies        []models.Testimony `json:"testimonies"`
}

func newStateJSON(state game.State) stateJSON {
	suspects := make([]suspectJSON, 0, len(state.Suspects))
	for _, suspect := range state.Suspects {
		suspects = append(suspects, suspectJSON{
			ID:          suspect.ID,
			Name:        suspect.Name,
			Description: suspect.Description,
			Avatar:      suspect.Avatar,
		})
	}
	return stateJSON{
		SessionID: state.SessionID,
		Phase:     state.Phase,
		Scenario: scenarioJSON{
			ID:          state.Scenario.ID,
			Title:       state.Scenario.Title,
			Description: state.Scenario.Description,
			Background:  state.Scenario.Background,
			CrimeScene:  state.Scenario.CrimeScene,
		},
		Suspects:           suspects,
		QuestionsUsed:      state.QuestionsUsed,
		QuestionsRemaining: state.QuestionsRemaining,
		Testimonies:        state.Testimonies,
	}
}

func (app *application) startGame(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ScenarioID string `json:"scenarioId"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	state, err := app.engine.Start(input.ScenarioID)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "start session"))
		return
	}

	// The briefing reveals in the background; the client follows it on the
	// stream endpoint and polls state to see the questioning phase begin.
	// app.baseCtx rather than the request context: the reveal outlives this
	// request but not the server.
	go func() {
		finish := app.beginFrames(state.SessionID)
		defer finish()
		if briefingErr := app.engine.RunBriefing(app.baseCtx); briefingErr != nil {
			app.logger.LogAttrs(context.Background(), slog.LevelWarn, "briefing aborted",
				slog.String("session_id", state.SessionID), errors.SlogError(briefingErr))
		}
	}()

	app.writeJSON(w, r, http.StatusCreated, newStateJSON(state))
}

func (app *application) gameState(w http.ResponseWriter, r *http.Request) {
	state, err := app.engine.State()
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newStateJSON(state))
}

func (app *application) skipBriefing(w http.ResponseWriter, r *http.Request) {
	if err := app.engine.SkipBriefing(); err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "skipped"})
}

func (app *application) askQuestion(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SuspectID int    `json:"suspectId"`
		Question  string `json:"question"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	state, err := app.engine.State()
	if err != nil {
		app.gameError(w, r, err)
		return
	}

	finish := app.beginFrames(state.SessionID)
	defer finish()

	answer, err := app.engine.AskQuestion(r.Context(), input.SuspectID, input.Question)
	if err != nil {
		app.gameError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusOK, struct {
		SuspectID          int        `json:"suspectId"`
		Question           string     `json:"question"`
		Answer             string     `json:"answer"`
		Fallback           bool       `json:"fallback"`
		QuestionsRemaining int        `json:"questionsRemaining"`
		Phase              game.Phase `json:"phase"`
	}{
		SuspectID:          answer.SuspectID,
		Question:           answer.Question,
		Answer:             answer.Text,
		Fallback:           answer.Fallback,
		QuestionsRemaining: answer.QuestionsRemaining,
		Phase:              answer.Phase,
	})
}

func (app *application) endQuestioning(w http.ResponseWriter, r *http.Request) {
	if err := app.engine.EndQuestioning(); err != nil {
		app.gameError(w, r, err)
		return
	}
	state, err := app.engine.State()
	if err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newStateJSON(state))
}

func (app *application) accuse(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SuspectID int `json:"suspectId"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}

	verdict, err := app.engine.Accuse(r.Context(), input.SuspectID)
	if err != nil {
		app.gameError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusOK, struct {
		Correct     bool           `json:"correct"`
		Explanation string         `json:"explanation"`
		Session     models.Session `json:"session"`
	}{
		Correct:     verdict.Session.IsCorrect,
		Explanation: verdict.Explanation,
		Session:     verdict.Session,
	})
}

// streamGame serves reveal frames over Server-Sent Events. The briefing and
// each answer publish a frame channel under the session id; a subscriber that
// arrives between operations gets an immediate done event and should fall back
// to the session state.
func (app *application) streamGame(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		state, err := app.engine.State()
		if err != nil {
			app.gameError(w, r, err)
			return
		}
		sessionID = state.SessionID
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		app.serverError(w, r, errors.New("response writer does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	frames, producing := <-app.frames.Subscribe(sessionID)
	if !producing {
		_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, open := <-frames:
			if !open {
				_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(struct {
				Field string `json:"field"`
				Text  string `json:"text"`
			}{Field: frame.Field, Text: frame.Text})
			if err != nil {
				app.logger.LogAttrs(r.Context(), slog.LevelError, "could not marshal frame", errors.SlogError(err))
				return
			}
			_, _ = fmt.Fprintf(w, "event: frame\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
