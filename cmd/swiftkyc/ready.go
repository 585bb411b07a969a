package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/database"
	"github.com/composedlabyrinth/SwiftKYC/internal/s3storage"
)

// readinessCheck reports whether one backing service is usable.
type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

// stackConfig is the server configuration with the compose database filled
// in when none is set.
func stackConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.Durable() {
		cfg.DatabaseURL = localDatabaseURL
	}
	return cfg, nil
}

// stackChecks repeat what app.New does on startup in durable mode.
func stackChecks(cfg *config.Config) []readinessCheck {
	return []readinessCheck{
		{name: "postgres", ping: func(ctx context.Context) error {
			pool, err := database.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return database.EnsureSchema(ctx, pool)
		}},
		{name: "redis", ping: func(ctx context.Context) error {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			defer rdb.Close()
			return rdb.Ping(ctx).Err()
		}},
		{name: "minio", ping: func(ctx context.Context) error {
			store, err := s3storage.New(cfg)
			if err != nil {
				return err
			}
			return store.EnsureBuckets(ctx)
		}},
	}
}

// waitReady runs the checks in order, retrying each every interval until it
// passes. All checks share one timeout.
func waitReady(ctx context.Context, out io.Writer, timeout, interval time.Duration, checks []readinessCheck) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, c := range checks {
		for attempt := 1; ; attempt++ {
			err := c.ping(ctx)
			if err == nil {
				fmt.Fprintf(out, "%s ready\n", c.name)
				break
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s not ready after %d attempts: %w", c.name, attempt, err)
			case <-time.After(interval):
			}
		}
	}
	return nil
}
