package main

import (
	"fmt"

	"github.com/bissquit/orgstatus/internal/config"
	"github.com/bissquit/orgstatus/internal/pkg/postgres"
	"github.com/bissquit/orgstatus/migrations"
	"github.com/spf13/cobra"
)

var migrateSteps int

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFilePath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return postgres.MigrateUp(migrations.FS, cfg.Database.URL)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migrations",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFilePath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return postgres.MigrateDown(migrations.FS, cfg.Database.URL, migrateSteps)
	},
}
