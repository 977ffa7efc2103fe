package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sdtechevents/eventhub/internal/app"
	"github.com/sdtechevents/eventhub/internal/auth"
	"github.com/sdtechevents/eventhub/internal/config"
	"github.com/sdtechevents/eventhub/internal/logging"
	"github.com/sdtechevents/eventhub/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting eventhub")

	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		os.Exit(1)
	}
	if authConfig.SyncSecret == "" {
		logger.Warn("SYNC_SECRET not set, sync endpoints only accept admin tokens")
	}
	logger.Info("auth configured", "admin_login", authConfig.LoginEnabled())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := server.New(cfg.Server, logger, a.Handler(authConfig))

	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
