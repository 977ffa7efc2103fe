package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdtechevents/eventhub/internal/models"
)

// EventRepository is the store gateway every adapter writes through.
type EventRepository interface {
	// Upsert inserts or updates by (source, source_id). The stored id and
	// created_at survive a conflict; updated_at is refreshed.
	Upsert(ctx context.Context, input models.EventInput) (*models.Event, error)

	// QueryUpcoming returns approved events matching filter, by start date.
	QueryUpcoming(ctx context.Context, filter models.EventFilter) ([]models.Event, error)

	// CountUpcoming counts approved events starting now or later.
	CountUpcoming(ctx context.Context) (int, error)

	// GetByID retrieves an event by its ID, or nil when absent.
	GetByID(ctx context.Context, id string) (*models.Event, error)
}

// SyncRunRepository stores adapter run history.
type SyncRunRepository interface {
	Record(ctx context.Context, run models.SyncRun) error
	ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// MemoryEventRepository implements an in-memory event store for tests and
// STORE_DRIVER=memory.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]models.Event // natural key -> event
	byID   map[string]string       // id -> natural key
	now    func() time.Time
}

// NewMemoryEventRepository creates a new in-memory event repository.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events: make(map[string]models.Event),
		byID:   make(map[string]string),
		now:    time.Now,
	}
}

// Upsert stores or refreshes an event.
func (r *MemoryEventRepository) Upsert(ctx context.Context, input models.EventInput) (*models.Event, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	key := input.NaturalKey()

	event, exists := r.events[key]
	if !exists {
		event = models.Event{ID: uuid.New().String(), CreatedAt: now}
		r.byID[event.ID] = key
	}
	event.EventInput = cloneInput(input)
	event.UpdatedAt = now
	r.events[key] = event

	out := event
	return &out, nil
}

// QueryUpcoming filters events in memory.
func (r *MemoryEventRepository) QueryUpcoming(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Event, 0)
	for _, event := range r.events {
		if filter.Matches(event, containsFold) {
			result = append(result, event)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartDate.Before(result[j].StartDate)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// CountUpcoming counts approved events that have not started yet.
func (r *MemoryEventRepository) CountUpcoming(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	count := 0
	for _, event := range r.events {
		if event.IsApproved && !event.StartDate.Before(now) {
			count++
		}
	}
	return count, nil
}

// GetByID retrieves an event by ID.
func (r *MemoryEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	event := r.events[key]
	return &event, nil
}

// Len returns the number of stored events.
func (r *MemoryEventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

func containsFold(title, needle string) bool {
	return strings.Contains(strings.ToLower(title), strings.ToLower(needle))
}

func cloneInput(in models.EventInput) models.EventInput {
	if in.Tags != nil {
		in.Tags = append([]string(nil), in.Tags...)
	}
	return in
}

// MemorySyncRunRepository keeps the most recent runs in memory.
type MemorySyncRunRepository struct {
	mu   sync.Mutex
	runs []models.SyncRun
	max  int
}

// NewMemorySyncRunRepository retains at most max runs (100 when max <= 0).
func NewMemorySyncRunRepository(max int) *MemorySyncRunRepository {
	if max <= 0 {
		max = 100
	}
	return &MemorySyncRunRepository{max: max}
}

// Record appends a run, evicting the oldest beyond capacity.
func (r *MemorySyncRunRepository) Record(ctx context.Context, run models.SyncRun) error {
	if run.ID == "" {
		return fmt.Errorf("sync run id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, run)
	if len(r.runs) > r.max {
		r.runs = r.runs[len(r.runs)-r.max:]
	}
	return nil
}

// ListRecent returns runs newest first.
func (r *MemorySyncRunRepository) ListRecent(ctx context.Context, limit int) ([]models.SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.runs) {
		limit = len(r.runs)
	}

	out := make([]models.SyncRun, 0, limit)
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}
