// Package app assembles the KYC service and its backends from configuration.
// The server, the worker and the CLI all build through it so that every
// process runs with the same thresholds and the same stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/database"
	"github.com/composedlabyrinth/SwiftKYC/internal/facematch"
	"github.com/composedlabyrinth/SwiftKYC/internal/identity"
	"github.com/composedlabyrinth/SwiftKYC/internal/kyc"
	"github.com/composedlabyrinth/SwiftKYC/internal/metrics"
	"github.com/composedlabyrinth/SwiftKYC/internal/ocr"
	"github.com/composedlabyrinth/SwiftKYC/internal/ocr/tesseract"
	"github.com/composedlabyrinth/SwiftKYC/internal/processing"
	"github.com/composedlabyrinth/SwiftKYC/internal/quality"
	"github.com/composedlabyrinth/SwiftKYC/internal/queue"
	"github.com/composedlabyrinth/SwiftKYC/internal/repository"
	"github.com/composedlabyrinth/SwiftKYC/internal/s3storage"
	"github.com/composedlabyrinth/SwiftKYC/internal/sessionlock"
	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
	"github.com/composedlabyrinth/SwiftKYC/internal/worker"
)

// App holds the wired service and the resources that must be released.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Service *kyc.Service
	Images  kyc.ImageStore

	// Pool is the in-process face-match queue. It is nil in durable mode,
	// where jobs go through asynq instead.
	Pool *processing.Processor

	closers []func()
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func NewLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h).With("service", "swiftkyc")
}

func parseLevel(v string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// New connects the configured backends and builds the service. With a
// DatabaseURL it uses Postgres, S3, Redis locks and asynq. Without one it
// runs entirely in memory with an in-process job pool.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New(reg)}

	var (
		repo   kyc.Repository
		locker kyc.Locker
		jobs   kyc.Enqueuer
	)
	if cfg.Durable() {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		repo = repository.New(pool)

		store, err := s3storage.New(cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := store.EnsureBuckets(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure buckets: %w", err)
		}
		a.Images = store

		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		locker = sessionlock.NewRedis(rdb, sessionlock.WithTTL(cfg.LockTTL), sessionlock.WithWait(cfg.LockWait))

		client := asynq.NewClient(a.RedisOpt())
		a.closers = append(a.closers, func() { _ = client.Close() })
		jobs = queue.NewEnqueuer(client, cfg.JobMaxRetry)
	} else {
		logger.Warn("no database configured, using in-memory storage")
		repo = storage.NewMemoryStore()
		a.Images = storage.NewMemoryImages()
		locker = sessionlock.NewLocal(cfg.LockWait)
		a.Pool = processing.New(cfg.WorkerConcurrency,
			processing.WithLogger(logger),
			processing.WithRetry(cfg.JobMaxRetry, time.Second),
		)
		jobs = a.Pool
	}

	a.Service = kyc.New(repo, a.Images, jobs, NewExtractor(cfg),
		kyc.WithLogger(logger),
		kyc.WithMetrics(a.Metrics),
		kyc.WithLocker(locker),
		kyc.WithMatcher(NewMatcher(cfg)),
		kyc.WithQualityGate(quality.New(quality.WithMaxPixels(cfg.MaxImagePixels))),
		kyc.WithFaceGate(facematch.New(a.Images,
			facematch.WithThreshold(cfg.FaceMatchThreshold),
			facematch.WithMaxPixels(cfg.MaxImagePixels),
		)),
		kyc.WithOCRLimits(cfg.OCRConcurrency, cfg.OCRTimeout),
	)
	return a, nil
}

// NewExtractor returns the tesseract-backed extractor for cfg.OCRLanguages.
func NewExtractor(cfg *config.Config) *ocr.Extractor {
	return ocr.NewExtractor(tesseract.New(cfg.OCRLanguages...))
}

// NewMatcher returns the identity matcher tuned by cfg.
func NewMatcher(cfg *config.Config) *identity.Matcher {
	return identity.NewMatcher(
		identity.WithThresholds(cfg.NameThreshold, cfg.TokenThreshold),
		identity.WithLastFourFallback(cfg.LastFourFallback),
	)
}

// RedisOpt is the asynq connection for cfg.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}
}

// RunWorkers consumes face-match jobs until ctx is cancelled: the asynq
// server in durable mode, the in-process pool otherwise.
func (a *App) RunWorkers(ctx context.Context) error {
	if a.Pool != nil {
		a.Pool.Start(ctx, func(ctx context.Context, sessionID string) error {
			_, err := a.Service.ProcessFaceMatch(ctx, sessionID)
			return err
		})
		<-ctx.Done()
		a.Pool.Wait()
		return nil
	}

	srv := asynq.NewServer(a.RedisOpt(), asynq.Config{
		Concurrency: a.Config.WorkerConcurrency,
		Queues:      queue.Queues(),
		Logger:      asynqLogger{a.Logger},
		IsFailure: func(err error) bool {
			return !errors.Is(err, kyc.ErrSessionBusy)
		},
	})
	if err := srv.Start(worker.NewProcessor(a.Service, a.Logger).Handler()); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	a.Logger.Info("face match worker started", "concurrency", a.Config.WorkerConcurrency)
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct{ l *slog.Logger }

func (l asynqLogger) Debug(args ...any) { l.l.Debug(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Info(args ...any)  { l.l.Info(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Warn(args ...any)  { l.l.Warn(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Error(args ...any) { l.l.Error(fmt.Sprint(args...), "component", "asynq") }
func (l asynqLogger) Fatal(args ...any) {
	l.l.Error(fmt.Sprint(args...), "component", "asynq")
	os.Exit(1)
}
