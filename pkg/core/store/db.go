package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the shared connection pool from a postgres URL
// (normally DATABASE_URL). Only the first call has any effect.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		if dbURL == "" {
			err = fmt.Errorf("DATABASE_URL environment variable not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			err = fmt.Errorf("failed to create database pool: %w", err)
			return
		}

		if err = EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			pool = nil
		}
	})
	return err
}

// GetPool returns the database connection pool, or nil before InitDB.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

const schema = `
	CREATE TABLE IF NOT EXISTS dcf_runs (
		id          UUID PRIMARY KEY,
		created_at  TIMESTAMPTZ NOT NULL,
		per_share   DOUBLE PRECISION NOT NULL,
		payload     JSONB NOT NULL
	);
`

// EnsureSchema creates the dcf_runs table if it does not exist.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure dcf_runs schema: %w", err)
	}
	return nil
}
