package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonathan/hiretrack/internal/types"
)

// JobStore persists job postings.
type JobStore interface {
	ListJobs(ctx context.Context) ([]types.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	CreateJob(ctx context.Context, job *types.Job) error
	UpdateJob(ctx context.Context, job *types.Job) error
	DeleteJob(ctx context.Context, id uuid.UUID) error
	CountJobs(ctx context.Context) (total int, open int, err error)
}

// CandidateStore persists candidates.
type CandidateStore interface {
	CreateCandidate(ctx context.Context, c *types.Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	ListCandidatesByJob(ctx context.Context, jobID uuid.UUID) ([]types.Candidate, error)
	ListAdminCandidates(ctx context.Context) ([]types.AdminCandidate, error)
	ListUnscoredCandidates(ctx context.Context) ([]types.Candidate, error)
	// UpdateCandidate writes stage, history, evaluation and resume fields (last write wins).
	UpdateCandidate(ctx context.Context, c *types.Candidate) error
	// UpdateEvaluation writes only the evaluation and cached resume text.
	UpdateEvaluation(ctx context.Context, id uuid.UUID, eval *types.Evaluation, resumeText string) error
	SetResumeURL(ctx context.Context, id uuid.UUID, url string) error
	DeleteCandidate(ctx context.Context, id uuid.UUID) error
	CountCandidatesByStage(ctx context.Context) (map[string]int, error)
}

// PipelineLogStore persists the transition audit trail.
type PipelineLogStore interface {
	CreatePipelineLog(ctx context.Context, log *types.PipelineLog) error
	ListPipelineLogs(ctx context.Context, candidateID uuid.UUID) ([]types.PipelineLog, error)
	RecentPipelineLogs(ctx context.Context, limit int) ([]types.PipelineLog, error)
}

// Store is the full document store used by the server.
type Store interface {
	JobStore
	CandidateStore
	PipelineLogStore
	Ping(ctx context.Context) error
}
