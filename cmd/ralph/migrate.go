package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"ralph-api/internal/config"
	"ralph-api/internal/store/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if a.cfg.Storage.Driver != config.DriverPostgres {
				return errors.Errorf("migrations need the %s driver", config.DriverPostgres)
			}
			return nil
		},
	}

	withMigrator := func(fn func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			m, err := postgres.NewMigrator(cmd.Context(), a.cfg.Storage.DSN, a.log)
			if err != nil {
				return err
			}
			defer m.Close()
			if err := m.Ping(cmd.Context()); err != nil {
				return err
			}
			return fn(cmd, m)
		}
	}

	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration, or down to --to",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			return m.Down(cmd.Context(), target)
		}),
	}
	down.Flags().Int64Var(&target, "to", 0, "target version")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				return m.Up(cmd.Context())
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				return m.Status(cmd.Context())
			}),
		},
	)
	return cmd
}
