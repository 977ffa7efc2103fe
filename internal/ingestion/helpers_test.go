package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sdtechevents/eventhub/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testFetcher talks to srv without retry delays.
func testFetcher(srv *httptest.Server, retries int) *HTTPFetcher {
	return NewHTTPFetcher(srv.Client(), RetryPolicy{
		MaxRetries:     retries,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	})
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// failingRepo rejects upserts for the listed source IDs.
type failingRepo struct {
	*MemoryEventRepository
	fail map[string]bool
}

func (r *failingRepo) Upsert(ctx context.Context, input models.EventInput) (*models.Event, error) {
	if r.fail[input.SourceID] {
		return nil, errors.New("connection reset")
	}
	return r.MemoryEventRepository.Upsert(ctx, input)
}

func storedBySourceID(t *testing.T, repo *MemoryEventRepository) map[string]models.Event {
	t.Helper()
	events, err := repo.QueryUpcoming(context.Background(), models.EventFilter{})
	if err != nil {
		t.Fatalf("QueryUpcoming failed: %v", err)
	}
	out := make(map[string]models.Event, len(events))
	for _, e := range events {
		out[e.SourceID] = e
	}
	return out
}
