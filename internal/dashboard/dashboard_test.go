package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiretrack/internal/db/dbtest"
	"github.com/jonathan/hiretrack/internal/types"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()

	open := &types.Job{Title: "Backend Engineer", Description: "d"}
	open.ApplyDefaults()
	require.NoError(t, store.CreateJob(ctx, open))
	closed := &types.Job{Title: "Archivist", Description: "d", Status: types.JobStatusClosed}
	closed.ApplyDefaults()
	require.NoError(t, store.CreateJob(ctx, closed))

	base := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	ada := types.NewCandidate("Ada", "ada@example.com", "1", open.ID, base)
	require.NoError(t, store.CreateCandidate(ctx, ada))
	require.NoError(t, store.CreatePipelineLog(ctx, types.NewPipelineLog(ada.ID, ada.History[0])))

	t2, _ := ada.MoveTo("Screening", types.ActorAdmin, base.Add(time.Hour))
	require.NoError(t, store.UpdateCandidate(ctx, ada))
	require.NoError(t, store.CreatePipelineLog(ctx, types.NewPipelineLog(ada.ID, t2)))

	orphan := types.NewCandidate("Bob", "bob@example.com", "1", uuid.New(), base)
	require.NoError(t, store.CreateCandidate(ctx, orphan))
	require.NoError(t, store.CreatePipelineLog(ctx, &types.PipelineLog{
		CandidateID: orphan.ID, OldStage: "", NewStage: types.StageApplied, Time: base.Add(2 * time.Hour),
	}))
	require.NoError(t, store.CreatePipelineLog(ctx, &types.PipelineLog{
		CandidateID: uuid.New(), OldStage: "Interview", NewStage: "Offer", Time: base.Add(3 * time.Hour),
	}))

	stats, err := New(store).Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalJobs)
	assert.Equal(t, 1, stats.OpenJobs)
	assert.Equal(t, 2, stats.TotalCandidates)
	assert.Equal(t, map[string]int{"Screening": 1, "Applied": 1}, stats.StageMap)

	messages := make([]string, len(stats.RecentActivity))
	for i, a := range stats.RecentActivity {
		messages[i] = a.Message
	}
	assert.Equal(t, []string{
		"Candidate moved from Interview to Offer",
		"Bob moved from  to Applied",
		"Ada moved from Applied to Screening",
		"Ada applied for Backend Engineer",
	}, messages)
	assert.Equal(t, base.Add(3*time.Hour), stats.RecentActivity[0].Time)
}

func TestStats_LimitsActivity(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New()
	for i := 0; i < RecentActivityLimit+5; i++ {
		require.NoError(t, store.CreatePipelineLog(ctx, &types.PipelineLog{CandidateID: uuid.New(), OldStage: "A", NewStage: "B"}))
	}

	stats, err := New(store).Stats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats.RecentActivity, RecentActivityLimit)
	assert.Equal(t, 0, stats.TotalCandidates)
	assert.NotNil(t, stats.StageMap)
}

type failingStore struct{ *dbtest.Memory }

func (failingStore) CountJobs(context.Context) (int, int, error) {
	return 0, 0, errors.New("db down")
}

func TestStats_CountFailure(t *testing.T) {
	_, err := New(failingStore{dbtest.New()}).Stats(context.Background())
	assert.ErrorContains(t, err, "db down")
}
