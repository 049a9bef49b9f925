package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/hiretrack/internal/types"
)

const candidateColumns = `c.id, c.name, c.email, c.phone, c.resume_url, c.job_id, c.stage,
	c.cover_note, c.resume_text, c.ats, c.history, c.version, c.created_at, c.updated_at`

// scanCandidate scans candidateColumns plus any extra destinations.
func scanCandidate(row pgx.Row, extra ...any) (*types.Candidate, error) {
	var c types.Candidate
	var atsJSON, historyJSON []byte
	dest := []any{&c.ID, &c.Name, &c.Email, &c.Phone, &c.ResumeURL, &c.JobID, &c.Stage,
		&c.CoverNote, &c.ResumeText, &atsJSON, &historyJSON, &c.Version, &c.CreatedAt, &c.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if len(atsJSON) > 0 && string(atsJSON) != "null" {
		c.ATS = &types.Evaluation{}
		if err := json.Unmarshal(atsJSON, c.ATS); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation: %w", err)
		}
	}
	if err := json.Unmarshal(historyJSON, &c.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return &c, nil
}

func marshalEvaluation(eval *types.Evaluation) ([]byte, error) {
	if eval == nil {
		return nil, nil
	}
	data, err := json.Marshal(eval)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation: %w", err)
	}
	return data, nil
}

func (db *DB) queryCandidates(ctx context.Context, query string, args ...any) ([]types.Candidate, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []types.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// CreateCandidate inserts a new candidate.
func (db *DB) CreateCandidate(ctx context.Context, c *types.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	atsJSON, err := marshalEvaluation(c.ATS)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(c.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO candidates (id, name, email, phone, resume_url, job_id, stage, cover_note,
		                         resume_text, ats, history)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING version, created_at, updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.ResumeURL, c.JobID, c.Stage, c.CoverNote,
		c.ResumeText, atsJSON, historyJSON,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	return nil
}

// GetCandidate retrieves a candidate by ID. Returns (nil, nil) when not found.
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error) {
	c, err := scanCandidate(db.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates c WHERE c.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return c, nil
}

// ListCandidatesByJob returns a job's candidates, newest first.
func (db *DB) ListCandidatesByJob(ctx context.Context, jobID uuid.UUID) ([]types.Candidate, error) {
	return db.queryCandidates(ctx,
		`SELECT `+candidateColumns+` FROM candidates c WHERE c.job_id = $1 ORDER BY c.created_at DESC`,
		jobID)
}

// ListUnscoredCandidates returns candidates that have a resume but no evaluation.
func (db *DB) ListUnscoredCandidates(ctx context.Context) ([]types.Candidate, error) {
	return db.queryCandidates(ctx,
		`SELECT `+candidateColumns+` FROM candidates c
		 WHERE (c.ats IS NULL OR c.ats = 'null'::jsonb) AND c.resume_url <> ''
		 ORDER BY c.created_at`)
}

// ListAdminCandidates returns every candidate with its job title resolved.
// Candidates whose job was deleted carry a nil Job.
func (db *DB) ListAdminCandidates(ctx context.Context) ([]types.AdminCandidate, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+candidateColumns+`, j.id, j.title
		 FROM candidates c
		 LEFT JOIN jobs j ON j.id = c.job_id
		 ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	out := []types.AdminCandidate{}
	for rows.Next() {
		var jobID *uuid.UUID
		var jobTitle *string
		c, err := scanCandidate(rows, &jobID, &jobTitle)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		ac := types.AdminCandidate{Candidate: *c}
		if jobID != nil && jobTitle != nil {
			ac.Job = &types.JobSummary{ID: *jobID, Title: *jobTitle}
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

// UpdateCandidate writes the mutable state of a candidate and bumps its version.
func (db *DB) UpdateCandidate(ctx context.Context, c *types.Candidate) error {
	atsJSON, err := marshalEvaluation(c.ATS)
	if err != nil {
		return err
	}
	historyJSON, err := json.Marshal(c.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`UPDATE candidates
		 SET stage = $2, ats = $3, history = $4, resume_url = $5, resume_text = $6,
		     version = version + 1, updated_at = NOW()
		 WHERE id = $1
		 RETURNING version, updated_at`,
		c.ID, c.Stage, atsJSON, historyJSON, c.ResumeURL, c.ResumeText,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	return nil
}

// UpdateEvaluation stores an evaluation without touching stage or history.
// An empty resumeText keeps the cached text.
func (db *DB) UpdateEvaluation(ctx context.Context, id uuid.UUID, eval *types.Evaluation, resumeText string) error {
	atsJSON, err := marshalEvaluation(eval)
	if err != nil {
		return err
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates
		 SET ats = $2, resume_text = COALESCE(NULLIF($3, ''), resume_text),
		     version = version + 1, updated_at = NOW()
		 WHERE id = $1`,
		id, atsJSON, resumeText)
	if err != nil {
		return fmt.Errorf("failed to update evaluation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResumeURL attaches the storage reference once a deferred upload completes.
func (db *DB) SetResumeURL(ctx context.Context, id uuid.UUID, url string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE candidates SET resume_url = $2, version = version + 1, updated_at = NOW() WHERE id = $1`,
		id, url)
	if err != nil {
		return fmt.Errorf("failed to set resume url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCandidate removes a candidate. Its pipeline logs are kept.
func (db *DB) DeleteCandidate(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountCandidatesByStage returns the number of candidates in each stage.
func (db *DB) CountCandidatesByStage(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx, `SELECT stage, COUNT(*) FROM candidates GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("failed to count candidates: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("failed to scan stage count: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}
