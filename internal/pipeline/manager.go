// Package pipeline moves candidates between hiring stages and records each
// transition in the candidate history and the pipeline log.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/metrics"
	"github.com/jonathan/hiretrack/internal/types"
)

var (
	// ErrCandidateNotFound is returned when the candidate does not exist.
	ErrCandidateNotFound = errors.New("candidate not found")
	// ErrInvalidStage is returned when a target stage is not part of the job's pipeline.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrEmptyOverride is returned when an override changes nothing.
	ErrEmptyOverride = errors.New("override must set decision, stage or ats")
)

// Store is the persistence the manager needs.
type Store interface {
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	UpdateCandidate(ctx context.Context, c *types.Candidate) error
	CreatePipelineLog(ctx context.Context, log *types.PipelineLog) error
}

// Manager applies stage transitions and admin overrides.
type Manager struct {
	store      Store
	thresholds []config.StageThreshold
	now        func() time.Time
}

// NewManager returns a Manager. thresholds must be ordered by descending score,
// as returned by config.ParseStageThresholds.
func NewManager(store Store, thresholds []config.StageThreshold) *Manager {
	return &Manager{store: store, thresholds: thresholds, now: func() time.Time { return time.Now().UTC() }}
}

// Move transitions a candidate to stage on behalf of an admin. The stage must be
// Applied, one of the job's pipeline stages, or Rejected; the defaults apply when
// the job no longer exists. Moving to the current stage is a no-op.
func (m *Manager) Move(ctx context.Context, candidateID uuid.UUID, stage string) (*types.Candidate, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil, fmt.Errorf("%w: stage is required", ErrInvalidStage)
	}

	c, err := m.getCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}

	job, err := m.store.GetJob(ctx, c.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if !job.HasStage(stage) {
		return nil, fmt.Errorf("%w: %q is not one of %s", ErrInvalidStage, stage, strings.Join(job.ValidStages(), ", "))
	}

	if _, err := m.Transition(ctx, c, stage, types.ActorAdmin); err != nil {
		return nil, err
	}
	return c, nil
}

// Transition moves c to stage, persists it and writes the pipeline log. It
// reports false without writing anything when c is already in stage. The stage
// is not validated. A failed log write is logged and otherwise ignored.
func (m *Manager) Transition(ctx context.Context, c *types.Candidate, stage, by string) (bool, error) {
	t, moved := c.MoveTo(stage, by, m.now())
	if !moved {
		return false, nil
	}
	if err := m.store.UpdateCandidate(ctx, c); err != nil {
		return false, fmt.Errorf("failed to update candidate: %w", err)
	}
	m.writeLog(ctx, c.ID, t)
	return true, nil
}

// Override applies an admin correction. The decision is recorded on the
// evaluation and moves the candidate to Screening (decision "Screening") or
// Rejected (anything else). An ats patch is merged field by field. A stage is
// set directly without validation.
func (m *Manager) Override(ctx context.Context, candidateID uuid.UUID, req *types.OverrideRequest) (*types.Candidate, error) {
	if req == nil || req.IsEmpty() {
		return nil, ErrEmptyOverride
	}

	c, err := m.getCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var transitions []types.Transition

	if decision := strings.TrimSpace(req.Decision); decision != "" {
		eval := evaluationOrNew(c)
		eval.Decision = decision
		eval.EvaluatedAt = now
		switch {
		case strings.TrimSpace(req.Reason) != "":
			eval.Explanation = "Manual override: " + strings.TrimSpace(req.Reason)
		case eval.Explanation == "":
			eval.Explanation = "Manual override"
		}
		c.ATS = eval

		next := types.StageRejected
		if decision == types.StageScreening {
			next = types.StageScreening
		}
		if t, moved := c.MoveTo(next, types.ActorAdminOverride, now); moved {
			transitions = append(transitions, t)
		}
	}

	if req.ATS != nil && !req.ATS.IsEmpty() {
		eval := evaluationOrNew(c)
		mergeEvaluation(eval, req.ATS)
		eval.EvaluatedAt = now
		c.ATS = eval
	}

	if stage := strings.TrimSpace(req.Stage); stage != "" {
		if t, moved := c.MoveTo(stage, types.ActorAdminOverride, now); moved {
			transitions = append(transitions, t)
		}
	}

	if err := m.store.UpdateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update candidate: %w", err)
	}
	for _, t := range transitions {
		m.writeLog(ctx, c.ID, t)
	}
	return c, nil
}

// Recommend returns the stage whose threshold is the highest one score meets
// among the stages of job, or "" when none applies.
func (m *Manager) Recommend(score int, job *types.Job) string {
	return Recommend(score, m.thresholds, job)
}

// Recommend is the threshold policy behind Manager.Recommend. thresholds must
// be ordered by descending score.
func Recommend(score int, thresholds []config.StageThreshold, job *types.Job) string {
	for _, th := range thresholds {
		if score >= th.Score && job.HasStage(th.Stage) {
			return th.Stage
		}
	}
	return ""
}

func (m *Manager) getCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error) {
	c, err := m.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return nil, ErrCandidateNotFound
	}
	return c, nil
}

func (m *Manager) writeLog(ctx context.Context, candidateID uuid.UUID, t types.Transition) {
	metrics.Transitions.WithLabelValues(t.By).Inc()
	if err := m.store.CreatePipelineLog(ctx, types.NewPipelineLog(candidateID, t)); err != nil {
		log.Printf("[pipeline] failed to write log for candidate %s (%s -> %s): %v", candidateID, t.From, t.To, err)
	}
}

func evaluationOrNew(c *types.Candidate) *types.Evaluation {
	if c.ATS == nil {
		return &types.Evaluation{}
	}
	eval := *c.ATS
	return &eval
}

func mergeEvaluation(eval *types.Evaluation, patch *types.EvaluationPatch) {
	if patch.TotalScore != nil {
		eval.TotalScore = *patch.TotalScore
	}
	if patch.Decision != nil {
		eval.Decision = *patch.Decision
	}
	if patch.Breakdown != nil {
		eval.Breakdown = *patch.Breakdown
	}
	if patch.Explanation != nil {
		eval.Explanation = *patch.Explanation
	}
	if patch.Strengths != nil {
		eval.Strengths = patch.Strengths
	}
	if patch.Gaps != nil {
		eval.Gaps = patch.Gaps
	}
}
