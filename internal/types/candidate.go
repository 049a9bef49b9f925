package types

import (
	"time"

	"github.com/google/uuid"
)

// Evaluation decision labels produced by the oracle.
const (
	DecisionRecommended = "Recommended"
	DecisionMaybe       = "Maybe"
	DecisionRejected    = "Rejected"
)

// Actor labels recorded on stage transitions.
const (
	ActorAdmin         = "Admin"
	ActorAdminOverride = "Admin Override"
	ActorATS           = "ATS"
)

// Candidate is one application to one job.
type Candidate struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	ResumeURL string       `json:"resumeUrl,omitempty"`
	JobID     uuid.UUID    `json:"jobId"`
	Stage     string       `json:"stage"`
	CoverNote string       `json:"coverNote,omitempty"`
	ATS       *Evaluation  `json:"ats"`
	History   []Transition `json:"history"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`

	// ResumeText caches the extracted resume text for re-scoring.
	ResumeText string `json:"-"`
	// Version increments on every write.
	Version int `json:"-"`
}

// NewCandidate returns a candidate in the Applied stage with its initial history entry.
func NewCandidate(name, email, phone string, jobID uuid.UUID, now time.Time) *Candidate {
	return &Candidate{
		ID:      uuid.New(),
		Name:    name,
		Email:   email,
		Phone:   phone,
		JobID:   jobID,
		Stage:   StageApplied,
		History: []Transition{{From: "", To: StageApplied, Time: now}},
	}
}

// MoveTo sets the stage and appends a transition. It reports false when the
// candidate is already in stage, in which case nothing changes.
func (c *Candidate) MoveTo(stage, by string, now time.Time) (Transition, bool) {
	if c.Stage == stage {
		return Transition{}, false
	}
	t := Transition{From: c.Stage, To: stage, Time: now, By: by}
	c.Stage = stage
	c.History = append(c.History, t)
	return t, true
}

// Transition is one entry of a candidate's append-only stage history.
type Transition struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Time time.Time `json:"time"`
	By   string    `json:"by,omitempty"`
}

// Evaluation is the stored result of scoring a resume against a job.
type Evaluation struct {
	EvaluatedAt      time.Time `json:"evaluatedAt"`
	TotalScore       int       `json:"totalScore"`
	Decision         string    `json:"decision"`
	Breakdown        Breakdown `json:"breakdown"`
	Explanation      string    `json:"explanation"`
	Strengths        []string  `json:"strengths,omitempty"`
	Gaps             []string  `json:"gaps,omitempty"`
	RecommendedStage string    `json:"recommendedStage,omitempty"`
}

// Breakdown holds the per-dimension scores, each in [0,100].
type Breakdown struct {
	SkillMatch      int `json:"skill_match"`
	ExperienceMatch int `json:"experience_match"`
	EducationMatch  int `json:"education_match"`
	KeywordMatch    int `json:"keyword_match"`
}

// DecisionForScore maps a total score onto the oracle decision labels.
func DecisionForScore(score int) string {
	switch {
	case score >= 75:
		return DecisionRecommended
	case score >= 50:
		return DecisionMaybe
	default:
		return DecisionRejected
	}
}

// IsDecision reports whether label is one of the oracle decision labels.
func IsDecision(label string) bool {
	switch label {
	case DecisionRecommended, DecisionMaybe, DecisionRejected:
		return true
	}
	return false
}

// PipelineLog is an immutable audit record of one stage transition.
type PipelineLog struct {
	ID          uuid.UUID `json:"id"`
	CandidateID uuid.UUID `json:"candidateId"`
	OldStage    string    `json:"oldStage"`
	NewStage    string    `json:"newStage"`
	Time        time.Time `json:"time"`
}

// NewPipelineLog builds the audit record for a transition.
func NewPipelineLog(candidateID uuid.UUID, t Transition) *PipelineLog {
	return &PipelineLog{
		ID:          uuid.New(),
		CandidateID: candidateID,
		OldStage:    t.From,
		NewStage:    t.To,
		Time:        t.Time,
	}
}

// JobSummary is the job reference embedded in admin candidate listings.
type JobSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// AdminCandidate is a candidate with its job resolved. Job shadows the embedded
// JobID in JSON and is null when the job no longer exists.
type AdminCandidate struct {
	Candidate
	Job *JobSummary `json:"jobId"`
}
