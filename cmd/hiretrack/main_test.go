package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/hiretrack/internal/types"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseSeedJobs_Samples(t *testing.T) {
	jobs, err := parseSeedJobs(sampleJobs)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "Senior Frontend Developer", jobs[0].Title)
	assert.Equal(t, types.DefaultPipelineStages, jobs[0].PipelineStages)
	assert.Equal(t, []string{"Screening", "Portfolio Review", "Onsite", "Offer"}, jobs[1].PipelineStages)
	for _, job := range jobs {
		assert.Equal(t, types.JobStatusOpen, job.Status)
	}
}

func TestParseSeedJobs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an array", `{"title":"x","description":"y"}`},
		{"missing description", `[{"title":"x"}]`},
		{"bad status", `[{"title":"x","description":"y","status":"paused"}]`},
		{"duplicate stages", `[{"title":"x","description":"y","pipelineStages":["A","A"]}]`},
		{"built-in stage", `[{"title":"x","description":"y","pipelineStages":["Rejected"]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeedJobs([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestSeedJobs_DryRun(t *testing.T) {
	t.Cleanup(func() { seedDryRun = false })

	out, err := execute(t, "", "seed-jobs", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "JOBS (dry run)")
	assert.Contains(t, out, "DevOps Engineer [open]")
}

func TestHashPassword(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")

	out, err := execute(t, "", "hash-password", "s3cret-pass")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret-pass")))

	out, err = execute(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("from-stdin")))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestMigrate_List(t *testing.T) {
	t.Cleanup(func() { migrateList = false })

	out, err := execute(t, "", "migrate", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, ".sql")
}
