package api

import (
	"log/slog"
	"net/http"

	"github.com/sdtechevents/eventhub/internal/auth"
	"github.com/sdtechevents/eventhub/internal/ingestion"
)

// Dependencies bundles what the routes need.
type Dependencies struct {
	Events ingestion.EventRepository
	Runs   ingestion.SyncRunRepository
	Runner SyncRunner
	Auth   auth.Config
	Logger *slog.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, deps Dependencies) {
	handler := NewHandler(deps.Events, deps.Logger)
	syncHandler := NewSyncHandler(deps.Runner, deps.Runs, deps.Logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Logger)

	requireSync := auth.RequireSync(deps.Auth)

	// Authentication routes (public)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Event routes (public for reading)
	mux.HandleFunc("GET /api/events", handler.ListEvents)
	mux.HandleFunc("GET /api/events/count", handler.CountEvents)
	mux.HandleFunc("GET /api/events/{id}", handler.GetEvent)

	// Sync routes (secret or admin token)
	mux.Handle("POST /api/sync/all", requireSync(http.HandlerFunc(syncHandler.SyncAll)))
	mux.Handle("POST /api/sync/{source}", requireSync(http.HandlerFunc(syncHandler.SyncSource)))
	mux.Handle("GET /api/sync/sources", requireSync(http.HandlerFunc(syncHandler.ListSources)))
	mux.Handle("GET /api/sync/runs", requireSync(http.HandlerFunc(syncHandler.ListRuns)))
}
