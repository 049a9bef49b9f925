package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/hiretrack/internal/observability"
	"github.com/jonathan/hiretrack/internal/schemas"
	"github.com/jonathan/hiretrack/internal/types"
)

//go:embed sample_jobs.json
var sampleJobs []byte

var (
	seedFile   string
	seedDryRun bool
)

var seedJobsCmd = &cobra.Command{
	Use:   "seed-jobs",
	Short: "Insert sample job postings",
	Long: `Insert three sample job postings, or the postings in --file.
The file is a JSON array of jobs and is checked against the jobs schema before anything is written.`,
	RunE: runSeedJobs,
}

func init() {
	seedJobsCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON file of jobs to insert instead of the samples")
	seedJobsCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate and print the jobs without writing them")
	rootCmd.AddCommand(seedJobsCmd)
}

func runSeedJobs(cmd *cobra.Command, _ []string) error {
	data := sampleJobs
	if seedFile != "" {
		var err error
		if data, err = os.ReadFile(seedFile); err != nil {
			return fmt.Errorf("failed to read %s: %w", seedFile, err)
		}
	}

	jobs, err := parseSeedJobs(data)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if seedDryRun {
		printer.PrintJobs("JOBS (dry run)", jobs)
		return nil
	}

	_, database, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	for i := range jobs {
		if err := database.CreateJob(cmd.Context(), &jobs[i]); err != nil {
			return fmt.Errorf("failed to insert %q: %w", jobs[i].Title, err)
		}
	}
	printer.PrintJobs(fmt.Sprintf("SEEDED %d JOBS", len(jobs)), jobs)
	return nil
}

// parseSeedJobs validates a seed document and converts it into jobs with defaults applied.
func parseSeedJobs(data []byte) ([]types.Job, error) {
	if err := schemas.Validate(schemas.Jobs, data); err != nil {
		return nil, err
	}

	var reqs []types.JobRequest
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	jobs := make([]types.Job, 0, len(reqs))
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("job %d (%q): %w", i+1, reqs[i].Title, err)
		}
		jobs = append(jobs, *reqs[i].ToJob())
	}
	return jobs, nil
}
