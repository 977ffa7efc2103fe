package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sdtechevents/eventhub/internal/auth"
	"github.com/sdtechevents/eventhub/internal/ingestion"
)

// SyncRunner is the part of ingestion.Pipeline the sync endpoints drive.
type SyncRunner interface {
	Sources() []string
	RunOne(ctx context.Context, name string) (ingestion.FetchResult, error)
	RunAll(ctx context.Context) map[string]ingestion.SourceResult
}

// SyncHandler triggers adapter runs and lists run history.
type SyncHandler struct {
	runner SyncRunner
	runs   ingestion.SyncRunRepository
	logger *slog.Logger
}

func NewSyncHandler(runner SyncRunner, runs ingestion.SyncRunRepository, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		runs:   runs,
		logger: logger,
	}
}

// SyncSourceResponse is the body of a successful single-source sync.
type SyncSourceResponse struct {
	Success     bool `json:"success"`
	Count       int  `json:"count"`
	Fetched     int  `json:"fetched"`
	Skipped     int  `json:"skipped"`
	Failed      int  `json:"failed"`
	QueryErrors int  `json:"query_errors,omitempty"`
}

// SyncAllResponse is the body of POST /api/sync/all.
type SyncAllResponse struct {
	Success bool                              `json:"success"`
	Results map[string]ingestion.SourceResult `json:"results"`
}

// SyncSource handles POST /api/sync/{source}
func (h *SyncHandler) SyncSource(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	principal, _ := auth.PrincipalFromContext(r.Context())
	h.logger.Info("sync triggered", "source", source, "principal", principal)

	result, err := h.runner.RunOne(r.Context(), source)
	if errors.Is(err, ingestion.ErrUnknownSource) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SyncSourceResponse{
		Success:     true,
		Count:       result.Upserted,
		Fetched:     result.Fetched,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		QueryErrors: result.QueryErrors,
	})
}

// SyncAll handles POST /api/sync/all. Per-source failures are reported in
// the results map; the request itself always succeeds.
func (h *SyncHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	h.logger.Info("sync triggered", "source", "all", "principal", principal)

	writeJSON(w, http.StatusOK, SyncAllResponse{
		Success: true,
		Results: h.runner.RunAll(r.Context()),
	})
}

// ListSources handles GET /api/sync/sources
func (h *SyncHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": h.runner.Sources()})
}

// ListRuns handles GET /api/sync/runs?limit=
func (h *SyncHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync runs", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
