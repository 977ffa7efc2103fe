package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sdtechevents/eventhub/internal/models"
)

// mapped is one source record after field mapping. ok is false when the
// mapper dropped it (missing required field, cancelled).
type mapped struct {
	input  models.EventInput
	ok     bool
	reason string
}

func skip(reason string) mapped {
	return mapped{reason: reason}
}

func keep(input models.EventInput) mapped {
	return mapped{input: input, ok: true}
}

// storeRecords upserts mapped records sequentially. Skips and store failures
// are logged and counted; only context cancellation stops the batch.
func storeRecords(ctx context.Context, repo EventRepository, logger *slog.Logger, result *FetchResult, records []mapped) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome := storeRecord(ctx, repo, logger, rec)
		result.add(outcome)
	}
	return nil
}

func storeRecord(ctx context.Context, repo EventRepository, logger *slog.Logger, rec mapped) RecordOutcome {
	if !rec.ok {
		logger.Debug("skipping record", "reason", rec.reason)
		return RecordSkip
	}

	if err := rec.input.Validate(); err != nil {
		logger.Debug("skipping invalid record", "source_id", rec.input.SourceID, "error", err)
		return RecordSkip
	}

	if _, err := repo.Upsert(ctx, rec.input); err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			logger.Debug("store rejected record", "source_id", rec.input.SourceID, "error", err)
			return RecordSkip
		}
		logger.Warn("failed to upsert event",
			"source_id", rec.input.SourceID,
			"title", rec.input.Title,
			"error", err,
		)
		return UpsertFailure
	}

	return RecordUpserted
}
