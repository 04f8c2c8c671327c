package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/riskframe/riskframe/internal/app"
	"github.com/riskframe/riskframe/internal/platform"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := app.OpenDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := platform.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := app.OpenDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := platform.MigrateDown(db, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	status := &cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := app.OpenDB(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			v, dirty, err := platform.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%v\n", v, dirty)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "files",
		Short: "List the embedded migration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := platform.MigrationFiles()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(up, down, status, list)
	return cmd
}
