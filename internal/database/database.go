package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN and verifies it
// with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the KYC tables if needed. documents.seq orders a
// session's documents by insertion so the newest one wins even when two share
// a created_at timestamp.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	mobile TEXT NOT NULL UNIQUE,
	email TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS kyc_sessions (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	status TEXT NOT NULL,
	current_step TEXT NOT NULL,
	failure_reason TEXT,
	retries_select INT NOT NULL DEFAULT 0,
	retries_scan INT NOT NULL DEFAULT 0,
	retries_upload INT NOT NULL DEFAULT 0,
	retries_selfie INT NOT NULL DEFAULT 0,
	selfie_ref TEXT,
	face_match_score DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kyc_sessions_status ON kyc_sessions(status);
CREATE INDEX IF NOT EXISTS idx_kyc_sessions_created ON kyc_sessions(created_at);
CREATE TABLE IF NOT EXISTS kyc_documents (
	seq BIGSERIAL UNIQUE,
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES kyc_sessions(id),
	doc_type TEXT NOT NULL,
	storage_ref TEXT,
	doc_number TEXT,
	is_valid BOOLEAN,
	quality_score DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kyc_documents_session ON kyc_documents(session_id, seq DESC);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
