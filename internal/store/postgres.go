// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

// Package store manages the PostgreSQL connection pool and schema migrations.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry settings. Postgres is commonly still booting when the
// service starts under an orchestrator, so the first pings are allowed to fail.
const (
	pingBackoffBase = 500 * time.Millisecond
	pingMaxWait     = 30 * time.Second
)

// Connect opens a pgx pool for the given DSN and waits for the database to
// answer a ping, retrying with fibonacci backoff up to the max wait.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_FAILED").
			With("operation", "parse dsn").
			Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxDuration(pingMaxWait, retry.NewFibonacci(pingBackoffBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			With("max_wait", pingMaxWait.String()).
			Wrap(err)
	}

	return pool, nil
}
