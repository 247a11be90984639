// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/holomush/authcore/internal/auth"
	"github.com/holomush/authcore/internal/auth/memory"
	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/store"
)

// stack is the wired authentication core.
type stack struct {
	Service       *auth.Service
	Authenticator auth.Authenticator
	Ready         func(ctx context.Context) error
	close         func()
}

// Close releases the storage backend.
func (s *stack) Close() {
	if s.close != nil {
		s.close()
	}
}

// storage is a principal directory paired with a session store.
type storage struct {
	users    auth.UserDirectory
	sessions auth.SessionStore
	durable  auth.DurableSessionStore
	ready    func(ctx context.Context) error
	close    func()
}

// ConnectFunc opens a PostgreSQL pool.
type ConnectFunc func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error)

func defaultConnect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return store.Connect(ctx, databaseURL, store.DefaultConnectConfig())
}

func openStorage(ctx context.Context, cfg *config.Config, connect ConnectFunc) (*storage, error) {
	if cfg.SessionBackend != config.BackendPostgres {
		return &storage{
			users:    memory.NewDirectory(),
			sessions: memory.NewSessionStore(),
			ready:    func(context.Context) error { return nil },
		}, nil
	}

	if connect == nil {
		connect = defaultConnect
	}
	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sessions := postgres.NewSessionRepository(pool)
	return &storage{
		users:    postgres.NewPrincipalRepository(pool),
		sessions: sessions,
		durable:  sessions,
		ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return oops.Code("DATABASE_UNREACHABLE").With("operation", "ping").Wrap(err)
			}
			return nil
		},
		close: pool.Close,
	}, nil
}

// newSessionAuth picks the session flavor for the configured strategy.
// Strategies that do not authenticate by cookie still get a plain session
// strategy for the login and logout routes.
func newSessionAuth(cfg *config.Config, st *storage, logger *slog.Logger) (*auth.SessionAuth, error) {
	sessionCfg := auth.SessionConfig{CookieName: cfg.CookieName, Duration: cfg.SessionDuration}
	opts := []auth.SessionOption{auth.WithSessionLogger(logger)}

	switch cfg.AuthStrategy {
	case config.StrategySessionExp:
		return auth.NewExpiringSessionAuth(sessionCfg, st.sessions, st.users, opts...)
	case config.StrategySessionDB:
		if st.durable == nil {
			return nil, oops.Code("CONFIG_INVALID").Errorf("auth strategy session_db requires a durable session store")
		}
		return auth.NewPersistentSessionAuth(sessionCfg, st.durable, st.users, opts...)
	default:
		return auth.NewSessionAuth(sessionCfg, st.sessions, st.users, opts...)
	}
}

func newAuthenticator(cfg *config.Config, sessions *auth.SessionAuth, users auth.UserDirectory, hasher auth.PasswordHasher, logger *slog.Logger) (auth.Authenticator, error) {
	switch cfg.AuthStrategy {
	case config.StrategyNone:
		return auth.NoAuth{}, nil
	case config.StrategyBasic:
		return auth.NewBasicAuthWithLogger(users, hasher, logger)
	default:
		return sessions, nil
	}
}

// buildStack wires storage, strategies, and the facade from cfg.
func buildStack(ctx context.Context, cfg *config.Config, connect ConnectFunc, logger *slog.Logger) (*stack, error) {
	st, err := openStorage(ctx, cfg, connect)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*stack, error) {
		if st.close != nil {
			st.close()
		}
		return nil, err
	}

	hasher := auth.NewArgon2idHasher()

	sessions, err := newSessionAuth(cfg, st, logger)
	if err != nil {
		return fail(err)
	}

	authenticator, err := newAuthenticator(cfg, sessions, st.users, hasher, logger)
	if err != nil {
		return fail(err)
	}

	resets, err := auth.NewResetTokenManager(st.users, hasher,
		auth.WithResetTTL(cfg.ResetTokenTTL),
		auth.WithResetLogger(logger),
	)
	if err != nil {
		return fail(err)
	}

	svc, err := auth.NewAuthServiceWithLogger(st.users, sessions, resets, hasher, logger)
	if err != nil {
		return fail(err)
	}

	return &stack{
		Service:       svc,
		Authenticator: authenticator,
		Ready:         st.ready,
		close:         st.close,
	}, nil
}
