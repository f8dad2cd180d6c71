package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/game"
	"github.com/myrjola/interrogame/internal/history"
	"github.com/myrjola/interrogame/internal/ledger"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	out, err := json.Marshal(data)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

// decodeJSON reads the request body into dst. An empty body leaves dst at its
// zero value so endpoints with all-optional inputs accept bare POSTs.
func (app *application) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		app.logger.Debug("malformed request body", "uri", r.URL.RequestURI(), errors.SlogError(err))
		app.errorJSON(w, r, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func (app *application) errorJSON(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.writeJSON(w, r, status, map[string]string{"error": message})
}

// gameError maps the engine's sentinel errors to API status codes. Anything
// unrecognized is a server error.
func (app *application) gameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrNoSession):
		app.errorJSON(w, r, http.StatusNotFound, "no active session")
	case errors.Is(err, game.ErrWrongPhase):
		app.errorJSON(w, r, http.StatusConflict, "operation not allowed in this phase")
	case errors.Is(err, game.ErrBusy):
		app.errorJSON(w, r, http.StatusConflict, "an answer is already in progress")
	case errors.Is(err, game.ErrSkipTooSoon):
		app.errorJSON(w, r, http.StatusConflict, "briefing cannot be skipped yet")
	case errors.Is(err, game.ErrEmptyQuestion):
		app.errorJSON(w, r, http.StatusUnprocessableEntity, "question text is empty")
	case errors.Is(err, game.ErrNoQuestionsLeft):
		app.errorJSON(w, r, http.StatusConflict, "question budget exhausted")
	case errors.Is(err, game.ErrNoTestimony):
		app.errorJSON(w, r, http.StatusConflict, "at least one question must be asked first")
	case errors.Is(err, ledger.ErrUnknownSuspect):
		app.errorJSON(w, r, http.StatusUnprocessableEntity, "unknown suspect")
	case errors.Is(err, history.ErrNotFound):
		app.errorJSON(w, r, http.StatusNotFound, "session not found")
	case errors.Is(err, history.ErrInvalidRating):
		app.errorJSON(w, r, http.StatusUnprocessableEntity, "rating out of range")
	default:
		app.serverError(w, r, err)
	}
}
