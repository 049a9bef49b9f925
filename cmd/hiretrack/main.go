// Package main provides the hiretrack command line: the API server plus
// maintenance commands for the database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "hiretrack",
	Short: "Job board and applicant tracking server",
	Long: "hiretrack serves a public job board and an admin applicant tracking API. " +
		"Resumes are scored by an LLM and candidates are moved through each job's hiring pipeline.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connect loads the configuration and opens the database.
func connect(ctx context.Context) (*config.Config, *db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, database, nil
}
