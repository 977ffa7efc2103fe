package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sdtechevents/eventhub/internal/models"
)

// RunObserver is notified after every adapter run.
type RunObserver interface {
	ObserveRun(ctx context.Context, run models.SyncRun) error
}

// RunObserverFunc adapts a function to RunObserver.
type RunObserverFunc func(ctx context.Context, run models.SyncRun) error

func (f RunObserverFunc) ObserveRun(ctx context.Context, run models.SyncRun) error {
	return f(ctx, run)
}

// PipelineConfig holds configuration for the ingestion pipeline.
type PipelineConfig struct {
	// ConcurrentFetches bounds RunAll; <= 0 runs every connector at once.
	ConcurrentFetches int
}

// DefaultPipelineConfig returns sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{ConcurrentFetches: 0}
}

// Pipeline orchestrates adapter runs.
type Pipeline struct {
	connectors []Connector
	byName     map[string]Connector
	observers  []RunObserver
	logger     *slog.Logger
	config     PipelineConfig
	now        func() time.Time
}

// NewPipeline creates a new ingestion pipeline. Connector names must be unique.
func NewPipeline(connectors []Connector, logger *slog.Logger, config PipelineConfig, observers ...RunObserver) (*Pipeline, error) {
	byName := make(map[string]Connector, len(connectors))
	for _, conn := range connectors {
		if _, dup := byName[conn.Name()]; dup {
			return nil, fmt.Errorf("duplicate connector %q", conn.Name())
		}
		byName[conn.Name()] = conn
	}

	return &Pipeline{
		connectors: connectors,
		byName:     byName,
		observers:  observers,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}, nil
}

// Sources lists connector names in sorted order.
func (p *Pipeline) Sources() []string {
	names := make([]string, 0, len(p.connectors))
	for _, conn := range p.connectors {
		names = append(names, conn.Name())
	}
	sort.Strings(names)
	return names
}

// RunOne runs a single named connector and surfaces its error directly.
func (p *Pipeline) RunOne(ctx context.Context, name string) (FetchResult, error) {
	conn, ok := p.byName[name]
	if !ok {
		return FetchResult{Source: name}, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return p.run(ctx, conn)
}

// SourceResult is one entry of a RunAll report.
type SourceResult struct {
	FetchResult
	Err error
}

// MarshalJSON renders {"fetched":n,"upserted":n,...} or {"error":msg}.
func (r SourceResult) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err.Error()})
	}
	return json.Marshal(r.FetchResult)
}

// RunAll runs every connector concurrently. Failures are captured per source
// and never stop siblings.
func (p *Pipeline) RunAll(ctx context.Context) map[string]SourceResult {
	limit := p.config.ConcurrentFetches
	if limit <= 0 || limit > len(p.connectors) {
		limit = len(p.connectors)
	}

	results := make(map[string]SourceResult, len(p.connectors))
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, max(limit, 1))
	)

	p.logger.Info("starting sync of all sources", "connectors", len(p.connectors))

	for _, connector := range p.connectors {
		wg.Add(1)

		go func(conn Connector) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			res, err := p.run(ctx, conn)

			mu.Lock()
			results[conn.Name()] = SourceResult{FetchResult: res, Err: err}
			mu.Unlock()
		}(connector)
	}

	wg.Wait()
	return results
}

// run executes one connector, recovering panics, then notifies observers.
func (p *Pipeline) run(ctx context.Context, conn Connector) (result FetchResult, err error) {
	start := p.now()

	p.logger.Info("fetching from connector", "connector", conn.Name())

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: connector panicked: %v", conn.Name(), r)
			}
		}()
		result, err = conn.Fetch(ctx)
	}()

	result.Source = conn.Name()
	result.Duration = p.now().Sub(start)

	if err != nil {
		p.logger.Error("connector fetch failed",
			"connector", conn.Name(),
			"error", err,
			"duration", result.Duration,
		)
	} else {
		p.logger.Info("fetch completed",
			"connector", conn.Name(),
			"fetched", result.Fetched,
			"upserted", result.Upserted,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"duration", result.Duration,
		)
	}

	p.notify(ctx, newSyncRun(result, err, start))
	return result, err
}

func (p *Pipeline) notify(ctx context.Context, run models.SyncRun) {
	// History must be written even when the triggering request was cancelled.
	ctx = context.WithoutCancel(ctx)
	for _, obs := range p.observers {
		if err := obs.ObserveRun(ctx, run); err != nil {
			p.logger.Warn("run observer failed", "connector", run.Source, "error", err)
		}
	}
}

func newSyncRun(result FetchResult, err error, start time.Time) models.SyncRun {
	run := models.SyncRun{
		ID:         uuid.New().String(),
		Source:     result.Source,
		Fetched:    result.Fetched,
		Upserted:   result.Upserted,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
		StartedAt:  start.UTC(),
		DurationMs: int(result.Duration.Milliseconds()),
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}
