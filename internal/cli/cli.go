// Package cli implements the eventsync command, which runs source adapters
// once for use from cron or a cloud scheduler.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdtechevents/eventhub/internal/app"
	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/database"
	"github.com/sdtechevents/eventhub/internal/ingestion"
	"github.com/sdtechevents/eventhub/internal/logging"
)

// ErrRunFailed is returned when at least one named source failed.
var ErrRunFailed = errors.New("one or more sources failed")

// Env supplies the command's outside world.
type Env struct {
	Stdout     io.Writer
	Stderr     io.Writer
	LoadConfig func() (config.Config, error)
}

// DefaultEnv reads configuration from the process environment.
func DefaultEnv() Env {
	return Env{Stdout: os.Stdout, Stderr: os.Stderr, LoadConfig: config.Load}
}

// NewRootCmd creates the root command
func NewRootCmd(env Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eventsync",
		Short:         "Sync San Diego tech events from their sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	cmd.AddCommand(newRunCmd(env), newSourcesCmd(env), newMigrateCmd(env))
	return cmd
}

func newRunCmd(env Env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "run [source...]",
		Short: "Run the named sources, or every source with --all",
		Long: `Run fetches, normalizes and upserts events for each named source and
prints a JSON report keyed by source. With --all (or no arguments) every
enabled source runs concurrently and failures are reported per source.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), env, args, all || len(args) == 0)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Run every enabled source")
	return cmd
}

func runSync(ctx context.Context, env Env, names []string, all bool) error {
	cfg, err := env.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewWithWriter(cfg.Logging, env.Stderr)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{SkipMigrations: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if all {
		return writeJSON(env.Stdout, a.Pipeline.RunAll(ctx))
	}

	results := make(map[string]ingestion.SourceResult, len(names))
	failed := false
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		result, err := a.Pipeline.RunOne(ctx, name)
		results[name] = ingestion.SourceResult{FetchResult: result, Err: err}
		if err != nil {
			failed = true
		}
	}

	if err := writeJSON(env.Stdout, results); err != nil {
		return err
	}
	if failed {
		return ErrRunFailed
	}
	return nil
}

func newSourcesCmd(env Env) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the enabled sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			connectors := app.BuildConnectors(cfg.Sources, app.NewFetcher(cfg.HTTP), nil, slog.New(slog.DiscardHandler))
			names := make([]string, 0, len(connectors))
			for _, c := range connectors {
				names = append(names, c.Name())
			}
			return writeJSON(env.Stdout, names)
		},
	}
}

func newMigrateCmd(env Env) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if dir == "" {
				dir = cfg.Store.MigrationsDir
			}

			logger, err := logging.NewWithWriter(cfg.Logging, env.Stderr)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}

			db, err := app.OpenDatabase(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := database.RunMigrations(cmd.Context(), db, dir, logger)
			if err != nil {
				return err
			}
			return writeJSON(env.Stdout, map[string][]string{"applied": applied})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (default MIGRATIONS_DIR)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
