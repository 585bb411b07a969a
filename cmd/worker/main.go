// Command worker consumes face-match jobs from Redis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/composedlabyrinth/SwiftKYC/internal/app"
	"github.com/composedlabyrinth/SwiftKYC/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		app.NewLogger(&config.Config{}).Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	if !cfg.Durable() {
		logger.Error("worker requires SWIFTKYC_DATABASE_URL; the in-memory mode runs jobs inside the server")
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("init", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.RunWorkers(ctx); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
