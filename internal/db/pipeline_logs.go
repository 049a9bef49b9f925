package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiretrack/internal/types"
)

// CreatePipelineLog appends a transition to the audit trail.
func (db *DB) CreatePipelineLog(ctx context.Context, entry *types.PipelineLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO pipeline_logs (id, candidate_id, old_stage, new_stage, time)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.CandidateID, entry.OldStage, entry.NewStage, entry.Time)
	if err != nil {
		return fmt.Errorf("failed to create pipeline log: %w", err)
	}
	return nil
}

func (db *DB) queryPipelineLogs(ctx context.Context, query string, args ...any) ([]types.PipelineLog, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline logs: %w", err)
	}
	defer rows.Close()

	logs := []types.PipelineLog{}
	for rows.Next() {
		var l types.PipelineLog
		if err := rows.Scan(&l.ID, &l.CandidateID, &l.OldStage, &l.NewStage, &l.Time); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// ListPipelineLogs returns a candidate's transitions, oldest first.
func (db *DB) ListPipelineLogs(ctx context.Context, candidateID uuid.UUID) ([]types.PipelineLog, error) {
	return db.queryPipelineLogs(ctx,
		`SELECT id, candidate_id, old_stage, new_stage, time
		 FROM pipeline_logs WHERE candidate_id = $1 ORDER BY time`, candidateID)
}

// RecentPipelineLogs returns the newest transitions across all candidates.
func (db *DB) RecentPipelineLogs(ctx context.Context, limit int) ([]types.PipelineLog, error) {
	if limit <= 0 {
		limit = 10
	}
	return db.queryPipelineLogs(ctx,
		`SELECT id, candidate_id, old_stage, new_stage, time
		 FROM pipeline_logs ORDER BY time DESC LIMIT $1`, limit)
}
