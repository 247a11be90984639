// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store owns the PostgreSQL schema and connection pool.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Querier is the query surface repositories need.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ConnectConfig controls how Connect waits for the database.
type ConnectConfig struct {
	// MaxRetries bounds the ping attempts after the first. Zero means no retries.
	MaxRetries uint64
	// BaseDelay is the first backoff delay; later delays grow exponentially.
	BaseDelay time.Duration
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// DefaultConnectConfig waits roughly half a minute for the database to come up.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{MaxRetries: 6, BaseDelay: 500 * time.Millisecond}
}

// pinger is the part of *pgxpool.Pool Connect retries on.
type pinger interface {
	Ping(ctx context.Context) error
}

// Connect opens a pool for databaseURL and pings it with exponential backoff.
func Connect(ctx context.Context, databaseURL string, cfg ConnectConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForPing(ctx, pool, cfg); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, db pinger, cfg ConnectConfig) error {
	base := cfg.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(cfg.MaxRetries, retry.NewExponential(base))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("max_retries", cfg.MaxRetries).
			Wrap(err)
	}
	return nil
}
