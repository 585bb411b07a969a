// Package repository is the Postgres implementation of the KYC repository.
// Missing rows are reported as storage.ErrNotFound so callers can treat the
// in-memory and durable stores alike.
package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/composedlabyrinth/SwiftKYC/internal/storage"
)

// Repository wraps all SQL used by the API and the worker.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a repository over pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func notFoundOr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", what, err)
}

func mustAffect(tag interface{ RowsAffected() int64 }) error {
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
