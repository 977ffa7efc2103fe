package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sdtechevents/eventhub/internal/models"
)

// SyncRunRepository implements ingestion.SyncRunRepository using PostgreSQL.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new PostgreSQL sync-run repository.
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Record stores one adapter run.
func (r *SyncRunRepository) Record(ctx context.Context, run models.SyncRun) error {
	if run.ID == "" {
		return fmt.Errorf("sync run id is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, source, fetched, upserted, skipped, failed, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		run.ID,
		run.Source,
		run.Fetched,
		run.Upserted,
		run.Skipped,
		run.Failed,
		sql.NullString{String: run.Error, Valid: run.Error != ""},
		run.StartedAt.UTC(),
		run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (r *SyncRunRepository) ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, fetched, upserted, skipped, failed, error, started_at, duration_ms
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	runs := []models.SyncRun{}
	for rows.Next() {
		var run models.SyncRun
		var runErr sql.NullString
		if err := rows.Scan(
			&run.ID,
			&run.Source,
			&run.Fetched,
			&run.Upserted,
			&run.Skipped,
			&run.Failed,
			&runErr,
			&run.StartedAt,
			&run.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		run.Error = runErr.String
		run.StartedAt = run.StartedAt.UTC()
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}
