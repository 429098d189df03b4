// Package db provides connection helpers for the job store and the request
// queue.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable wraps every PostgreSQL connection failure.
var ErrStoreUnavailable = errors.New("job store unavailable")

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DATABASE_URL: %w", ErrStoreUnavailable, err)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "jobmate-aggregator"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: pgxpool.NewWithConfig: %w", ErrStoreUnavailable, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: postgres ping failed: %w", ErrStoreUnavailable, err)
	}

	return pool, nil
}
