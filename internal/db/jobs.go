package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/hiretrack/internal/types"
)

const jobColumns = `id, title, description, department, location, employment_type, skills,
	requirements, posted_date, status, pipeline_stages, created_at, updated_at`

func scanJob(row pgx.Row) (*types.Job, error) {
	var j types.Job
	err := row.Scan(&j.ID, &j.Title, &j.Description, &j.Department, &j.Location, &j.Type,
		&j.Skills, &j.Requirements, &j.PostedDate, &j.Status, &j.PipelineStages,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ListJobs returns all jobs, most recently posted first.
func (db *DB) ListJobs(ctx context.Context) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY posted_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// GetJob retrieves a job by ID. Returns (nil, nil) when the job does not exist.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// CreateJob inserts a job, assigning its ID and timestamps.
func (db *DB) CreateJob(ctx context.Context, job *types.Job) error {
	job.ApplyDefaults()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.PostedDate.IsZero() {
		job.PostedDate = time.Now().UTC()
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, title, description, department, location, employment_type,
		                   skills, requirements, posted_date, status, pipeline_stages)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		job.ID, job.Title, job.Description, job.Department, job.Location, job.Type,
		job.Skills, job.Requirements, job.PostedDate, job.Status, job.PipelineStages,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob overwrites every mutable field of a job.
func (db *DB) UpdateJob(ctx context.Context, job *types.Job) error {
	job.ApplyDefaults()
	err := db.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET title = $2, description = $3, department = $4, location = $5, employment_type = $6,
		     skills = $7, requirements = $8, posted_date = $9, status = $10, pipeline_stages = $11,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		job.ID, job.Title, job.Description, job.Department, job.Location, job.Type,
		job.Skills, job.Requirements, job.PostedDate, job.Status, job.PipelineStages,
	).Scan(&job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// DeleteJob removes a job. Candidates that reference it are left untouched.
func (db *DB) DeleteJob(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountJobs returns the total number of jobs and how many are open.
func (db *DB) CountJobs(ctx context.Context) (int, int, error) {
	var total, open int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'open') FROM jobs`,
	).Scan(&total, &open)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return total, open, nil
}
