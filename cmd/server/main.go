// Command server runs the SwiftKYC HTTP API. With SWIFTKYC_INLINE_WORKER set,
// or without a database, it also consumes face-match jobs in-process.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/composedlabyrinth/SwiftKYC/internal/api"
	"github.com/composedlabyrinth/SwiftKYC/internal/app"
	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/signing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		app.NewLogger(&config.Config{}).Error("load config", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("init", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := api.New(cfg, a.Service, a.Images, signing.NewSigner(cfg.SigningSecret), prometheus.DefaultGatherer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if a.Pool != nil || cfg.InlineWorker {
		g.Go(func() error { return a.RunWorkers(gctx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
