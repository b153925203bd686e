package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table StatePostgres reads and writes
const Schema = `
	CREATE TABLE IF NOT EXISTS analytics_page_state (
		state_key  TEXT PRIMARY KEY,
		state      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// StatePostgres implements the analytics StateStore for PostgreSQL
type StatePostgres struct {
	pool *pgxpool.Pool
}

// NewStatePostgres creates a new PostgreSQL state store
func NewStatePostgres(pool *pgxpool.Pool) *StatePostgres {
	return &StatePostgres{pool: pool}
}

// Migrate creates the state table if it does not exist
func (r *StatePostgres) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("creating analytics_page_state: %w", err)
	}
	return nil
}

// Get retrieves the state stored under key
func (r *StatePostgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `SELECT state FROM analytics_page_state WHERE state_key = $1`

	var state []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting analytics state: %w", err)
	}

	return state, true, nil
}

// Set upserts the state stored under key
func (r *StatePostgres) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO analytics_page_state (state_key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (state_key) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("setting analytics state: %w", err)
	}

	return nil
}
