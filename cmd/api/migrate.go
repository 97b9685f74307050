package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asistlabs/asist-service/internal/config"
	"github.com/asistlabs/asist-service/internal/persistence"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, (*persistence.Migrator).Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all tables)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, (*persistence.Migrator).Down)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *persistence.Migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version %d (dirty: %t)\n", v, dirty)
				return nil
			})
		},
	})
	return cmd
}

func withMigrator(cmd *cobra.Command, run func(*persistence.Migrator) error) error {
	m, err := persistence.NewMigrator(config.LoadPostgres().DSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cmd.PrintErrf("close migrator: %v\n", cerr)
		}
	}()

	if err := run(m); err != nil {
		return fmt.Errorf("%s: %w", cmd.CommandPath(), err)
	}
	cmd.Printf("%s completed\n", cmd.CommandPath())
	return nil
}
