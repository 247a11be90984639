// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authcore/internal/config"
	"github.com/holomush/authcore/internal/store"
)

// migrator is the subset of store.Migrator the commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Status() (store.Status, error)
	Force(version int) error
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, or inspect the PostgreSQL schema migrations.`,
		RunE:  withMigrator(migrateUp),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  withMigrator(migrateUp),
	})
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back every migration, or only the latest N with --steps.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := cmd.Flags().GetInt("steps")
			if err != nil {
				return err
			}
			if steps < 0 {
				return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("steps must be non-negative")
			}
			return withMigrator(func(cmd *cobra.Command, m migrator) error {
				return migrateDown(cmd, m, steps)
			})(cmd, args)
		},
	}
	down.Flags().Int("steps", 0, "number of migrations to roll back (0 = all)")
	cmd.AddCommand(down)
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE:  withMigrator(migrateStatus),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Force the migration version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(func(cmd *cobra.Command, m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced migration version to %d\n", version)
				return nil
			})(cmd, args)
		},
	})

	return cmd
}

func withMigrator(fn func(*cobra.Command, migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		databaseURL, err := getDatabaseURL()
		if err != nil {
			return err
		}

		m, err := newMigrator(databaseURL)
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: failed to close migrator: %v\n", closeErr)
			}
		}()

		return fn(cmd, m)
	}
}

func migrateUp(cmd *cobra.Command, m migrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func migrateDown(cmd *cobra.Command, m migrator, steps int) error {
	if steps > 0 {
		cmd.Printf("Rolling back %d migration(s)...\n", steps)
		if err := m.Steps(-steps); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").With("steps", steps).Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
		return nil
	}

	cmd.Println("Rolling back migrations...")
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("Rollback completed successfully")
	return nil
}

func migrateStatus(cmd *cobra.Command, m migrator) error {
	status, err := m.Status()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "get migration status").Wrap(err)
	}
	if status.Version == 0 {
		cmd.Println("No migrations applied")
	} else {
		cmd.Printf("Version: %d (%s)\n", status.Version, status.Name)
	}
	if status.Dirty {
		cmd.Println("Database is dirty; fix the failed migration and run 'migrate force'")
	}
	cmd.Printf("Pending: %d\n", len(status.Pending))
	return nil
}

// getDatabaseURL reads DATABASE_URL through the config layers.
func getDatabaseURL() (string, error) {
	cfg, err := config.Load(nil, configFile)
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	return cfg.DatabaseURL, nil
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}
