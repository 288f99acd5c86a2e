// Package database provides PostgreSQL connection management via pgx.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New creates a connection pool and verifies it with a ping.
func New(ctx context.Context, url string, maxConns, minConns int) (*DB, error) {
	cfg, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = int32(minConns)
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Schema is the idempotent DDL for attempt and event storage, one statement per element.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS attempts (
		id            UUID PRIMARY KEY,
		learner_id    TEXT NOT NULL,
		route         TEXT NOT NULL,
		kind          TEXT NOT NULL,
		question_ids  JSONB NOT NULL DEFAULT '[]'::jsonb,
		answers       JSONB NOT NULL DEFAULT '{}'::jsonb,
		correct       INT NOT NULL DEFAULT 0,
		total         INT NOT NULL DEFAULT 0,
		percent       DOUBLE PRECISION NOT NULL DEFAULT 0,
		passed        BOOLEAN NOT NULL DEFAULT FALSE,
		status        TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		deadline      TIMESTAMPTZ,
		submitted_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS attempts_learner_idx ON attempts (learner_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS events (
		id          BIGSERIAL PRIMARY KEY,
		learner_id  TEXT,
		event_type  TEXT NOT NULL,
		route       TEXT,
		data        JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS events_type_idx ON events (event_type, created_at)`,
}

// Migrate applies Schema. Every statement is safe to re-run.
func (db *DB) Migrate(ctx context.Context) error {
	if db == nil || db.Pool == nil {
		return fmt.Errorf("migrate: pool is nil")
	}
	for _, stmt := range Schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
