// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/auth/postgres"
	"github.com/holomush/authcore/internal/config"
)

// sessionPurger deletes expired durable sessions.
type sessionPurger interface {
	DeleteExpired(ctx context.Context, lifetime time.Duration) (int64, error)
}

// NewPurgeSessionsCmd creates the purge-sessions subcommand.
func NewPurgeSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired sessions from PostgreSQL",
		Long: `Delete durable sessions whose recorded duration has elapsed.
Sessions stored without a duration are deleted once they are older than the
configured session duration, and kept when that is 0.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
			}

			ctx := cmd.Context()
			pool, err := defaultConnect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			return purgeSessions(ctx, cmd, postgres.NewSessionRepository(pool), cfg.SessionDuration)
		},
	}

	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")
	cmd.Flags().Int64("session-duration-seconds", 0, "session lifetime in seconds (0 = never expires)")
	return cmd
}

func purgeSessions(ctx context.Context, cmd *cobra.Command, purger sessionPurger, lifetime time.Duration) error {
	n, err := purger.DeleteExpired(ctx, lifetime)
	if err != nil {
		return oops.Code("SESSION_PURGE_FAILED").With("lifetime", lifetime.String()).Wrap(err)
	}
	cmd.Printf("Purged %d expired sessions\n", n)
	return nil
}
