package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pool and verifies the server answers.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables used by the service if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sql := `
	CREATE TABLE IF NOT EXISTS craigs_sources (
		craigs_url TEXT PRIMARY KEY,
		city_state TEXT NOT NULL DEFAULT '',
		zips TEXT[] NOT NULL DEFAULT '{}',
		alt_zips TEXT[] NOT NULL DEFAULT '{}',
		date_crawled TIMESTAMPTZ,
		doc JSONB
	);

	CREATE INDEX IF NOT EXISTS idx_craigs_sources_date_crawled ON craigs_sources (date_crawled ASC NULLS FIRST);
	CREATE INDEX IF NOT EXISTS idx_craigs_sources_zips ON craigs_sources USING GIN (zips);

	CREATE TABLE IF NOT EXISTS crawl_failures (
		id BIGSERIAL PRIMARY KEY,
		source_url TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL,
		http_status_code INT NOT NULL DEFAULT 0,
		last_attempt_timestamp TIMESTAMPTZ NOT NULL,
		failure_count INT NOT NULL DEFAULT 1
	);
	`

	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
