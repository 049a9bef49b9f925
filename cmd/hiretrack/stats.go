package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/hiretrack/internal/dashboard"
	"github.com/jonathan/hiretrack/internal/observability"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the hiring dashboard",
	Long:  `Print job counts, candidates per stage and recent pipeline activity.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	_, database, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := dashboard.New(database).Stats(cmd.Context())
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintDashboard(stats)
	return nil
}
