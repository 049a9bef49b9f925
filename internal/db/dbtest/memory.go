// Package dbtest provides an in-memory db.Store for tests.
package dbtest

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiretrack/internal/db"
	"github.com/jonathan/hiretrack/internal/types"
)

// Memory is a goroutine-safe in-memory implementation of db.Store.
// Set the Fail* fields to make the matching operations return an error.
type Memory struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]types.Job
	candidates map[uuid.UUID]types.Candidate
	logs       []types.PipelineLog

	FailPipelineLogs    bool
	FailCandidateWrites bool
}

// ErrInjected is returned by operations made to fail on purpose.
var ErrInjected = errors.New("injected failure")

var _ db.Store = (*Memory)(nil)

// New returns an empty store.
func New() *Memory {
	return &Memory{
		jobs:       make(map[uuid.UUID]types.Job),
		candidates: make(map[uuid.UUID]types.Candidate),
	}
}

func copyJob(j types.Job) types.Job {
	j.Skills = slices.Clone(j.Skills)
	j.Requirements = slices.Clone(j.Requirements)
	j.PipelineStages = slices.Clone(j.PipelineStages)
	return j
}

func copyCandidate(c types.Candidate) types.Candidate {
	c.History = slices.Clone(c.History)
	if c.ATS != nil {
		ats := *c.ATS
		ats.Strengths = slices.Clone(ats.Strengths)
		ats.Gaps = slices.Clone(ats.Gaps)
		c.ATS = &ats
	}
	return c
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// ListJobs returns all jobs, most recently posted first.
func (m *Memory) ListJobs(context.Context) ([]types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].PostedDate.After(out[k].PostedDate) })
	return out, nil
}

// GetJob returns (nil, nil) when the job does not exist.
func (m *Memory) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	j = copyJob(j)
	return &j, nil
}

// CreateJob stores a job, assigning its ID and timestamps.
func (m *Memory) CreateJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ApplyDefaults()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	if job.PostedDate.IsZero() {
		job.PostedDate = now
	}
	job.CreatedAt, job.UpdatedAt = now, now
	m.jobs[job.ID] = copyJob(*job)
	return nil
}

// UpdateJob replaces a stored job.
func (m *Memory) UpdateJob(_ context.Context, job *types.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.jobs[job.ID]
	if !ok {
		return db.ErrNotFound
	}
	job.ApplyDefaults()
	job.CreatedAt = existing.CreatedAt
	job.UpdatedAt = time.Now().UTC()
	m.jobs[job.ID] = copyJob(*job)
	return nil
}

// DeleteJob removes a job.
func (m *Memory) DeleteJob(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.jobs, id)
	return nil
}

// CountJobs returns total and open job counts.
func (m *Memory) CountJobs(context.Context) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	open := 0
	for _, j := range m.jobs {
		if j.Status == types.JobStatusOpen {
			open++
		}
	}
	return len(m.jobs), open, nil
}

// CreateCandidate stores a new candidate.
func (m *Memory) CreateCandidate(_ context.Context, c *types.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCandidateWrites {
		return ErrInjected
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	c.Version = 1
	m.candidates[c.ID] = copyCandidate(*c)
	return nil
}

// GetCandidate returns (nil, nil) when the candidate does not exist.
func (m *Memory) GetCandidate(_ context.Context, id uuid.UUID) (*types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	c = copyCandidate(c)
	return &c, nil
}

func (m *Memory) filterCandidates(keep func(types.Candidate) bool) []types.Candidate {
	out := []types.Candidate{}
	for _, c := range m.candidates {
		if keep(c) {
			out = append(out, copyCandidate(c))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// ListCandidatesByJob returns a job's candidates, newest first.
func (m *Memory) ListCandidatesByJob(_ context.Context, jobID uuid.UUID) ([]types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterCandidates(func(c types.Candidate) bool { return c.JobID == jobID }), nil
}

// ListUnscoredCandidates returns candidates with a resume and no evaluation.
func (m *Memory) ListUnscoredCandidates(context.Context) ([]types.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filterCandidates(func(c types.Candidate) bool { return c.ATS == nil && c.ResumeURL != "" }), nil
}

// ListAdminCandidates returns all candidates with their job resolved.
func (m *Memory) ListAdminCandidates(context.Context) ([]types.AdminCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filterCandidates(func(types.Candidate) bool { return true })
	out := make([]types.AdminCandidate, 0, len(all))
	for _, c := range all {
		ac := types.AdminCandidate{Candidate: c}
		if j, ok := m.jobs[c.JobID]; ok {
			ac.Job = &types.JobSummary{ID: j.ID, Title: j.Title}
		}
		out = append(out, ac)
	}
	return out, nil
}

// UpdateCandidate overwrites the mutable fields of a stored candidate.
func (m *Memory) UpdateCandidate(_ context.Context, c *types.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCandidateWrites {
		return ErrInjected
	}
	existing, ok := m.candidates[c.ID]
	if !ok {
		return db.ErrNotFound
	}
	existing.Stage = c.Stage
	existing.ATS = c.ATS
	existing.History = c.History
	existing.ResumeURL = c.ResumeURL
	existing.ResumeText = c.ResumeText
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	m.candidates[c.ID] = copyCandidate(existing)
	c.Version, c.UpdatedAt = existing.Version, existing.UpdatedAt
	return nil
}

// UpdateEvaluation stores an evaluation without touching stage or history.
func (m *Memory) UpdateEvaluation(_ context.Context, id uuid.UUID, eval *types.Evaluation, resumeText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCandidateWrites {
		return ErrInjected
	}
	existing, ok := m.candidates[id]
	if !ok {
		return db.ErrNotFound
	}
	existing.ATS = eval
	if resumeText != "" {
		existing.ResumeText = resumeText
	}
	existing.Version++
	existing.UpdatedAt = time.Now().UTC()
	m.candidates[id] = copyCandidate(existing)
	return nil
}

// SetResumeURL attaches a storage reference.
func (m *Memory) SetResumeURL(_ context.Context, id uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.candidates[id]
	if !ok {
		return db.ErrNotFound
	}
	existing.ResumeURL = url
	existing.Version++
	m.candidates[id] = existing
	return nil
}

// DeleteCandidate removes a candidate.
func (m *Memory) DeleteCandidate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.candidates, id)
	return nil
}

// CountCandidatesByStage returns per-stage counts.
func (m *Memory) CountCandidatesByStage(context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, c := range m.candidates {
		counts[c.Stage]++
	}
	return counts, nil
}

// CreatePipelineLog appends a log entry.
func (m *Memory) CreatePipelineLog(_ context.Context, entry *types.PipelineLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPipelineLogs {
		return ErrInjected
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	m.logs = append(m.logs, *entry)
	return nil
}

// ListPipelineLogs returns a candidate's logs, oldest first.
func (m *Memory) ListPipelineLogs(_ context.Context, candidateID uuid.UUID) ([]types.PipelineLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.PipelineLog{}
	for _, l := range m.logs {
		if l.CandidateID == candidateID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, k int) bool { return out[i].Time.Before(out[k].Time) })
	return out, nil
}

// RecentPipelineLogs returns the newest logs first.
func (m *Memory) RecentPipelineLogs(_ context.Context, limit int) ([]types.PipelineLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.logs)
	// Insertion order breaks ties so equal timestamps still list newest first.
	slices.Reverse(out)
	sort.SliceStable(out, func(i, k int) bool { return out[i].Time.After(out[k].Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Logs returns every stored pipeline log in insertion order.
func (m *Memory) Logs() []types.PipelineLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.logs)
}
