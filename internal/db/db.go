// Package db opens the PostgreSQL pool shared by the repositories.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool abstracts the pgx connection pool so stores can be exercised against fakes.
type Pool interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

// Options controls pool sizing and how long Connect keeps trying to reach a
// database that is still starting.
type Options struct {
	URL      string
	MaxConns int32
	Attempts int
	Backoff  time.Duration
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 1
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Connect opens a pool for opts.URL and pings it, retrying the ping with a
// linear backoff up to opts.Attempts times. A malformed URL fails at once.
func Connect(ctx context.Context, opts Options) (*pgxpool.Pool, error) {
	opts = opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if attempt >= opts.Attempts {
			break
		}
		wait := time.Duration(attempt) * opts.Backoff
		opts.Logger.Warn("database not reachable yet", "attempt", attempt, "maxAttempts", opts.Attempts, "retryIn", wait, "error", err)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("ping database after %d attempts: %w", opts.Attempts, err)
}
