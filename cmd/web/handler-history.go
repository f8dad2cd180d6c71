package main

import (
	"net/http"
	"strconv"

	"github.com/myrjola/interrogame/internal/errors"
	"github.com/myrjola/interrogame/internal/models"
)

func (app *application) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := len(app.history.All())
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			app.errorJSON(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	sessions := app.history.Recent(limit)
	if sessions == nil {
		sessions = []models.Session{}
	}
	app.writeJSON(w, r, http.StatusOK, sessions)
}

func (app *application) historyStats(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.history.Stats())
}

func (app *application) clearHistory(w http.ResponseWriter, r *http.Request) {
	app.history.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) submitSurvey(w http.ResponseWriter, r *http.Request) {
	var input struct {
		SessionID   string               `json:"sessionId"`
		Ratings     models.SurveyRatings `json:"ratings"`
		FreeComment string               `json:"freeComment"`
	}
	if !app.decodeJSON(w, r, &input) {
		return
	}
	if input.SessionID == "" {
		app.errorJSON(w, r, http.StatusUnprocessableEntity, "sessionId is required")
		return
	}

	if err := app.history.AttachSurvey(r.Context(), input.SessionID, input.Ratings, input.FreeComment); err != nil {
		app.gameError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, map[string]string{"status": "recorded"})
}

func (app *application) exportSurveys(w http.ResponseWriter, r *http.Request) {
	out, err := app.history.ExportSurveyCSV()
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "export surveys"))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="surveys.csv"`)
	_, _ = w.Write(out)
}

func (app *application) exportHistory(w http.ResponseWriter, r *http.Request) {
	out, err := app.history.ExportHistoryCSV()
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "export history"))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="history.csv"`)
	_, _ = w.Write(out)
}
