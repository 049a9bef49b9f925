package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/hiretrack/internal/db"
)

var migrateList bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	Long:  `Apply the embedded SQL migrations in order. Every migration is idempotent.`,
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "List the embedded migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if migrateList {
		names, err := db.MigrationNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}

	_, database, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RunMigrations(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}
