package models

import (
	"time"
)

// SyncRun records the outcome of one adapter run.
type SyncRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Fetched    int       `json:"fetched"`
	Upserted   int       `json:"upserted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int       `json:"duration_ms"`
}

// Succeeded reports whether the adapter finished without a run-level error.
func (r SyncRun) Succeeded() bool {
	return r.Error == ""
}
