package types

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// ApplyRequest is the JSON form of an application. At least one of ResumeURL
// (a pre-uploaded storage reference) or ResumeBase64 must be set; ResumeURL wins.
type ApplyRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	JobID        string `json:"jobId" validate:"required,uuid"`
	CoverNote    string `json:"coverNote,omitempty"`
	ResumeURL    string `json:"resumeUrl,omitempty"`
	ResumeBase64 string `json:"resumeBase64,omitempty"`
	ResumeName   string `json:"resumeName,omitempty"`
}

// ErrResumeRequired is returned when an application carries no resume.
var ErrResumeRequired = errors.New("resume is required")

// ValidateFields validates the applicant fields only. Multipart applications
// carry the resume as a file part and are checked with this.
func (r *ApplyRequest) ValidateFields() error {
	return validator.New().Struct(r)
}

// Validate validates the ApplyRequest.
func (r *ApplyRequest) Validate() error {
	if err := r.ValidateFields(); err != nil {
		return err
	}
	if r.ResumeURL == "" && r.ResumeBase64 == "" {
		return ErrResumeRequired
	}
	return nil
}

// ApplyResponse is returned after a successful application.
type ApplyResponse struct {
	Message     string `json:"message"`
	CandidateID string `json:"candidateId"`
}

// MoveStageRequest is the body of a stage transition request.
type MoveStageRequest struct {
	Stage string `json:"stage"`
}

// ScoreRequest asks for a candidate to be re-scored.
type ScoreRequest struct {
	CandidateID string `json:"candidateId" validate:"required,uuid"`
}

// Validate validates the ScoreRequest.
func (r *ScoreRequest) Validate() error {
	return validator.New().Struct(r)
}

// OverrideRequest is an admin correction of a candidate's evaluation or stage.
type OverrideRequest struct {
	Decision string           `json:"decision,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	Stage    string           `json:"stage,omitempty"`
	ATS      *EvaluationPatch `json:"ats,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r *OverrideRequest) IsEmpty() bool {
	return r.Decision == "" && r.Stage == "" && (r.ATS == nil || r.ATS.IsEmpty())
}

// EvaluationPatch carries the evaluation fields an admin may overwrite.
type EvaluationPatch struct {
	TotalScore  *int       `json:"totalScore,omitempty" validate:"omitempty,min=0,max=100"`
	Decision    *string    `json:"decision,omitempty"`
	Breakdown   *Breakdown `json:"breakdown,omitempty"`
	Explanation *string    `json:"explanation,omitempty"`
	Strengths   []string   `json:"strengths,omitempty"`
	Gaps        []string   `json:"gaps,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (p *EvaluationPatch) IsEmpty() bool {
	return p.TotalScore == nil && p.Decision == nil && p.Breakdown == nil &&
		p.Explanation == nil && p.Strengths == nil && p.Gaps == nil
}

// Validate validates the OverrideRequest.
func (r *OverrideRequest) Validate() error {
	if r.ATS == nil {
		return nil
	}
	return validator.New().Struct(r.ATS)
}

// OverrideResponse is returned after an override.
type OverrideResponse struct {
	OK        bool       `json:"ok"`
	Candidate *Candidate `json:"candidate"`
}

// ScoreResponse is returned after a candidate is re-scored.
type ScoreResponse struct {
	OK        bool       `json:"ok"`
	Candidate *Candidate `json:"candidate"`
}

// UploadURLRequest asks for a signed direct upload of a resume file.
type UploadURLRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType,omitempty"`
}

// Validate validates the UploadURLRequest.
func (r *UploadURLRequest) Validate() error {
	return validator.New().Struct(r)
}

// UploadURLResponse tells the client where to PUT the file and which
// resumeUrl to submit afterwards.
type UploadURLResponse struct {
	UploadURL string            `json:"uploadUrl"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	Key       string            `json:"key"`
	ResumeURL string            `json:"resumeUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ScoreAllResponse is returned when a batch scoring run is started.
type ScoreAllResponse struct {
	Message         string `json:"message"`
	CandidatesFound int    `json:"candidatesFound"`
}

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	TotalJobs       int            `json:"totalJobs"`
	OpenJobs        int            `json:"openJobs"`
	TotalCandidates int            `json:"totalCandidates"`
	StageMap        map[string]int `json:"stageMap"`
	RecentActivity  []Activity     `json:"recentActivity"`
}

// Activity is one rendered line of recent pipeline activity.
type Activity struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}
