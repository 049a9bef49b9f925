//go:build integration

package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiretrack/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestIntegration_JobCRUD(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	job := &types.Job{Title: "Integration Engineer", Description: "d", Skills: []string{"Go"}}
	require.NoError(t, db.CreateJob(ctx, job))
	defer func() { _ = db.DeleteJob(ctx, job.ID) }()

	assert.Equal(t, types.DefaultPipelineStages, job.PipelineStages)

	job.PipelineStages = []string{"Phone", "Onsite"}
	require.NoError(t, db.UpdateJob(ctx, job))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"Phone", "Onsite"}, got.PipelineStages)
	assert.Equal(t, []string{"Go"}, got.Skills)

	missing, err := db.GetJob(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIntegration_CandidateLifecycle(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	job := &types.Job{Title: "Lifecycle", Description: "d"}
	require.NoError(t, db.CreateJob(ctx, job))

	c := types.NewCandidate("Ada", "ada@example.com", "555", job.ID, time.Now().UTC())
	c.ResumeURL = "s3://bucket/resumes/ada.pdf"
	require.NoError(t, db.CreateCandidate(ctx, c))
	defer func() { _ = db.DeleteCandidate(ctx, c.ID) }()

	unscored, err := db.ListUnscoredCandidates(ctx)
	require.NoError(t, err)
	found := false
	for _, u := range unscored {
		if u.ID == c.ID {
			found = true
		}
	}
	assert.True(t, found)

	require.NoError(t, db.UpdateEvaluation(ctx, c.ID, &types.Evaluation{
		EvaluatedAt: time.Now().UTC(), TotalScore: 72, Decision: types.DecisionMaybe,
	}, "resume text"))

	got, err := db.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ATS)
	assert.Equal(t, 72, got.ATS.TotalScore)
	assert.Equal(t, "resume text", got.ResumeText)
	assert.Equal(t, types.StageApplied, got.Stage)

	// Job deletion leaves a dangling reference.
	require.NoError(t, db.DeleteJob(ctx, job.ID))
	all, err := db.ListAdminCandidates(ctx)
	require.NoError(t, err)
	for _, ac := range all {
		if ac.ID == c.ID {
			assert.Nil(t, ac.Job)
		}
	}
}

func TestIntegration_PipelineLogs(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	ctx := context.Background()

	candidateID := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, db.CreatePipelineLog(ctx, &types.PipelineLog{CandidateID: candidateID, NewStage: "Applied", Time: now}))
	require.NoError(t, db.CreatePipelineLog(ctx, &types.PipelineLog{CandidateID: candidateID, OldStage: "Applied", NewStage: "Screening", Time: now.Add(time.Second)}))

	logs, err := db.ListPipelineLogs(ctx, candidateID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Screening", logs[1].NewStage)
}
