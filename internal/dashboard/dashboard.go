// Package dashboard computes the admin dashboard summary.
package dashboard

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/hiretrack/internal/types"
)

// RecentActivityLimit is the number of pipeline logs shown as recent activity.
const RecentActivityLimit = 10

// Store is the read access the dashboard needs.
type Store interface {
	CountJobs(ctx context.Context) (total int, open int, err error)
	CountCandidatesByStage(ctx context.Context) (map[string]int, error)
	RecentPipelineLogs(ctx context.Context, limit int) ([]types.PipelineLog, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
}

// Aggregator builds DashboardStats. Nothing is cached.
type Aggregator struct {
	store Store
}

// New returns an Aggregator.
func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Stats gathers job counts, per-stage candidate counts and recent activity concurrently.
func (a *Aggregator) Stats(ctx context.Context) (*types.DashboardStats, error) {
	stats := &types.DashboardStats{}
	var logs []types.PipelineLog

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, open, err := a.store.CountJobs(gctx)
		if err != nil {
			return fmt.Errorf("failed to count jobs: %w", err)
		}
		stats.TotalJobs, stats.OpenJobs = total, open
		return nil
	})
	g.Go(func() error {
		stages, err := a.store.CountCandidatesByStage(gctx)
		if err != nil {
			return fmt.Errorf("failed to count candidates: %w", err)
		}
		stats.StageMap = stages
		for _, n := range stages {
			stats.TotalCandidates += n
		}
		return nil
	})
	g.Go(func() error {
		var err error
		logs, err = a.store.RecentPipelineLogs(gctx, RecentActivityLimit)
		if err != nil {
			return fmt.Errorf("failed to load pipeline logs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.StageMap == nil {
		stats.StageMap = map[string]int{}
	}

	stats.RecentActivity = make([]types.Activity, len(logs))
	g, gctx = errgroup.WithContext(ctx)
	for i := range logs {
		entry := logs[i]
		g.Go(func() error {
			stats.RecentActivity[i] = types.Activity{
				ID:      entry.ID.String(),
				Message: a.describe(gctx, entry),
				Time:    entry.Time,
			}
			return nil
		})
	}
	_ = g.Wait()
	return stats, nil
}

// describe renders one log entry. Lookup failures degrade the message.
func (a *Aggregator) describe(ctx context.Context, entry types.PipelineLog) string {
	c, err := a.store.GetCandidate(ctx, entry.CandidateID)
	if err != nil {
		log.Printf("[dashboard] candidate lookup failed for %s: %v", entry.CandidateID, err)
	}
	if c == nil {
		return fmt.Sprintf("Candidate moved from %s to %s", entry.OldStage, entry.NewStage)
	}
	if entry.OldStage == "" {
		job, err := a.store.GetJob(ctx, c.JobID)
		if err != nil {
			log.Printf("[dashboard] job lookup failed for %s: %v", c.JobID, err)
		}
		if job != nil {
			return fmt.Sprintf("%s applied for %s", c.Name, job.Title)
		}
	}
	return fmt.Sprintf("%s moved from %s to %s", c.Name, entry.OldStage, entry.NewStage)
}
