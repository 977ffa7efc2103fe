package app

import (
	"net/http"

	"github.com/sdtechevents/eventhub/internal/api"
	"github.com/sdtechevents/eventhub/internal/auth"
	"github.com/sdtechevents/eventhub/internal/server"
)

// Handler returns the full HTTP surface: health, metrics and the API, all
// instrumented by the request collector.
func (a *App) Handler(authConfig auth.Config) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /healthz", server.HealthHandler(a.HealthCheck, a.Logger))
	mux.Handle("GET /metrics", a.Metrics.Handler())

	api.SetupRoutes(mux, api.Dependencies{
		Events: a.Events,
		Runs:   a.Runs,
		Runner: a.Pipeline,
		Auth:   authConfig,
		Logger: a.Logger,
	})

	return a.Metrics.InstrumentHandler(mux)
}
