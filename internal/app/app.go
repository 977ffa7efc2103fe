// Package app assembles the store, source adapters and pipeline shared by
// the HTTP server and the eventsync CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/database"
	"github.com/sdtechevents/eventhub/internal/ingestion"
	"github.com/sdtechevents/eventhub/internal/metrics"
	"github.com/sdtechevents/eventhub/internal/sqlitestore"
)

// Options tunes New.
type Options struct {
	// SkipMigrations leaves the Postgres schema untouched on startup.
	SkipMigrations bool
}

// App holds the wired components.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Events   ingestion.EventRepository
	Runs     ingestion.SyncRunRepository
	Pipeline *ingestion.Pipeline
	Metrics  *metrics.HTTPCollector

	health  func(ctx context.Context) error
	closers []func() error
}

// New opens the configured store and builds the ingestion pipeline.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStore(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	a.Metrics = collector

	ingestionMetrics, err := metrics.NewIngestionCollector(collector.Registry())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to init ingestion metrics: %w", err)
	}

	fetcher := NewFetcher(cfg.HTTP)
	connectors := BuildConnectors(cfg.Sources, fetcher, a.Events, logger)

	pipeline, err := ingestion.NewPipeline(connectors, logger, ingestion.DefaultPipelineConfig(),
		ingestionMetrics,
		ingestion.RunObserverFunc(a.Runs.Record),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pipeline = pipeline

	logger.Info("ingestion pipeline ready", "sources", pipeline.Sources())
	return a, nil
}

func (a *App) openStore(ctx context.Context, opts Options) error {
	store := a.Config.Store
	a.Logger.Info("opening event store", "driver", store.Driver)

	switch store.Driver {
	case "memory":
		a.Events = ingestion.NewMemoryEventRepository()
		a.Runs = ingestion.NewMemorySyncRunRepository(200)
		a.health = func(context.Context) error { return nil }

	case "sqlite":
		s, err := sqlitestore.Open(store.SQLitePath)
		if err != nil {
			return err
		}
		a.Events, a.Runs = s, s
		a.health = func(context.Context) error { return nil }
		a.closers = append(a.closers, s.Close)

	case "postgres":
		a.Logger.Info("connecting to database", "url", store.RedactedDatabaseURL())
		db, err := database.Connect(ctx, database.DefaultConfig(store.DatabaseURL))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)

		if !opts.SkipMigrations {
			if _, err := database.RunMigrations(ctx, db, store.MigrationsDir, a.Logger); err != nil {
				a.Logger.Warn("failed to run migrations, continuing anyway", "error", err)
			}
		}

		a.Events = database.NewPostgresEventRepository(db)
		a.Runs = database.NewSyncRunRepository(db)
		a.health = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
		a.Logger.Info("database connected", "pool", database.Stats(db))

	default:
		return fmt.Errorf("unsupported store driver %q", store.Driver)
	}
	return nil
}

// HealthCheck reports whether the store is reachable.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.health == nil {
		return errors.New("store not opened")
	}
	return a.health(ctx)
}

// Close releases the store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewFetcher builds the shared outbound HTTP fetcher.
func NewFetcher(cfg config.HTTPConfig) *ingestion.HTTPFetcher {
	policy := ingestion.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	return ingestion.NewHTTPFetcher(&http.Client{Timeout: cfg.Timeout}, policy)
}

// BuildConnectors returns the enabled source adapters in registration order.
func BuildConnectors(sources config.SourcesConfig, fetcher *ingestion.HTTPFetcher, repo ingestion.EventRepository, logger *slog.Logger) []ingestion.Connector {
	var connectors []ingestion.Connector

	if !sources.Eventbrite.Disabled {
		connectors = append(connectors, ingestion.NewEventbriteConnector(sources.Eventbrite, fetcher, repo, logger))
	}
	if !sources.SerpAPI.Disabled {
		connectors = append(connectors, ingestion.NewSerpAPIConnector(sources.SerpAPI, fetcher, repo, logger))
	}
	if !sources.SDTechScene.Disabled {
		connectors = append(connectors, ingestion.NewSDTechSceneConnector(sources.SDTechScene, fetcher, repo, logger))
	}

	return connectors
}

// OpenDatabase connects to Postgres without building the rest of the app.
// The migrate command uses it.
func OpenDatabase(ctx context.Context, store config.StoreConfig) (*sql.DB, error) {
	if store.Driver != "postgres" {
		return nil, fmt.Errorf("migrations require STORE_DRIVER=postgres, got %q", store.Driver)
	}
	return database.Connect(ctx, database.DefaultConfig(store.DatabaseURL))
}
