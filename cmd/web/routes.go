package main

import (
	"net/http"

	"github.com/justinas/alice"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	api := alice.New()

	mux.Handle("POST /api/game/start", api.ThenFunc(app.startGame))
	mux.Handle("GET /api/game/state", api.ThenFunc(app.gameState))
	mux.Handle("POST /api/game/briefing/skip", api.ThenFunc(app.skipBriefing))
	mux.Handle("POST /api/game/question", api.ThenFunc(app.askQuestion))
	mux.Handle("POST /api/game/end-questioning", api.ThenFunc(app.endQuestioning))
	mux.Handle("POST /api/game/accuse", api.ThenFunc(app.accuse))
	mux.Handle("GET /api/game/stream", api.ThenFunc(app.streamGame))

	mux.Handle("GET /api/history", api.ThenFunc(app.listHistory))
	mux.Handle("GET /api/history/stats", api.ThenFunc(app.historyStats))
	mux.Handle("DELETE /api/history", api.ThenFunc(app.clearHistory))
	mux.Handle("POST /api/survey", api.ThenFunc(app.submitSurvey))
	mux.Handle("GET /api/export/surveys.csv", api.ThenFunc(app.exportSurveys))
	mux.Handle("GET /api/export/history.csv", api.ThenFunc(app.exportHistory))

	mux.Handle("GET /api/healthy", api.ThenFunc(app.healthy))

	return app.recoverPanic(app.logRequest(secureHeaders(mux)))
}
