package types

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Built-in stages every job has regardless of its configured pipeline.
const (
	StageApplied   = "Applied"
	StageRejected  = "Rejected"
	StageScreening = "Screening"
)

// Job posting status values.
const (
	JobStatusOpen   = "open"
	JobStatusClosed = "closed"
)

// Defaults applied to a job when a field is left blank.
const (
	DefaultDepartment     = "General"
	DefaultLocation       = "Remote"
	DefaultEmploymentType = "Full-time"
)

// DefaultPipelineStages is used when a job does not configure its own stages.
var DefaultPipelineStages = []string{"Screening", "Interview", "Offer"}

// Job is a job posting together with its hiring pipeline.
// PipelineStages excludes the implicit initial stage (Applied) and the terminal Rejected stage.
type Job struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Department     string    `json:"department"`
	Location       string    `json:"location"`
	Type           string    `json:"type"`
	Skills         []string  `json:"skills"`
	Requirements   []string  `json:"requirements"`
	PostedDate     time.Time `json:"postedDate"`
	Status         string    `json:"status"`
	PipelineStages []string  `json:"pipelineStages"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Stages returns the configured pipeline stages, or the defaults when none are set.
func (j *Job) Stages() []string {
	if j == nil || len(j.PipelineStages) == 0 {
		return slices.Clone(DefaultPipelineStages)
	}
	return slices.Clone(j.PipelineStages)
}

// ValidStages returns every stage a candidate for this job may be moved to:
// Applied, the pipeline stages in order, then Rejected.
func (j *Job) ValidStages() []string {
	stages := []string{StageApplied}
	stages = append(stages, j.Stages()...)
	return append(stages, StageRejected)
}

// HasStage reports whether stage is a valid stage for this job.
func (j *Job) HasStage(stage string) bool {
	return slices.Contains(j.ValidStages(), stage)
}

// ApplyDefaults fills blank optional fields.
func (j *Job) ApplyDefaults() {
	if j.Department == "" {
		j.Department = DefaultDepartment
	}
	if j.Location == "" {
		j.Location = DefaultLocation
	}
	if j.Type == "" {
		j.Type = DefaultEmploymentType
	}
	if j.Status == "" {
		j.Status = JobStatusOpen
	}
	if len(j.PipelineStages) == 0 {
		j.PipelineStages = slices.Clone(DefaultPipelineStages)
	}
	if j.Skills == nil {
		j.Skills = []string{}
	}
	if j.Requirements == nil {
		j.Requirements = []string{}
	}
}

// JobRequest is the body of a create-job request.
type JobRequest struct {
	Title          string     `json:"title" validate:"required"`
	Description    string     `json:"description" validate:"required"`
	Department     string     `json:"department,omitempty"`
	Location       string     `json:"location,omitempty"`
	Type           string     `json:"type,omitempty"`
	Skills         []string   `json:"skills,omitempty"`
	Requirements   []string   `json:"requirements,omitempty"`
	PostedDate     *time.Time `json:"postedDate,omitempty"`
	Status         string     `json:"status,omitempty" validate:"omitempty,oneof=open closed"`
	PipelineStages []string   `json:"pipelineStages,omitempty" validate:"omitempty,dive,required"`
}

// Validate validates the JobRequest.
func (r *JobRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	return validatePipelineStages(r.PipelineStages)
}

// ToJob builds a new Job from the request with defaults applied.
func (r *JobRequest) ToJob() *Job {
	job := &Job{
		Title:          strings.TrimSpace(r.Title),
		Description:    r.Description,
		Department:     r.Department,
		Location:       r.Location,
		Type:           r.Type,
		Skills:         r.Skills,
		Requirements:   r.Requirements,
		Status:         r.Status,
		PipelineStages: r.PipelineStages,
	}
	if r.PostedDate != nil {
		job.PostedDate = *r.PostedDate
	}
	job.ApplyDefaults()
	return job
}

// JobUpdateRequest is the body of an update-job request. Nil fields are left unchanged.
type JobUpdateRequest struct {
	Title          *string    `json:"title,omitempty" validate:"omitempty,min=1"`
	Description    *string    `json:"description,omitempty" validate:"omitempty,min=1"`
	Department     *string    `json:"department,omitempty"`
	Location       *string    `json:"location,omitempty"`
	Type           *string    `json:"type,omitempty"`
	Skills         []string   `json:"skills,omitempty"`
	Requirements   []string   `json:"requirements,omitempty"`
	PostedDate     *time.Time `json:"postedDate,omitempty"`
	Status         *string    `json:"status,omitempty" validate:"omitempty,oneof=open closed"`
	PipelineStages []string   `json:"pipelineStages,omitempty" validate:"omitempty,dive,required"`
}

// Validate validates the JobUpdateRequest.
func (r *JobUpdateRequest) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return err
	}
	return validatePipelineStages(r.PipelineStages)
}

// ApplyTo copies the set fields onto job.
func (r *JobUpdateRequest) ApplyTo(job *Job) {
	if r.Title != nil {
		job.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		job.Description = *r.Description
	}
	if r.Department != nil {
		job.Department = *r.Department
	}
	if r.Location != nil {
		job.Location = *r.Location
	}
	if r.Type != nil {
		job.Type = *r.Type
	}
	if r.Skills != nil {
		job.Skills = r.Skills
	}
	if r.Requirements != nil {
		job.Requirements = r.Requirements
	}
	if r.PostedDate != nil {
		job.PostedDate = *r.PostedDate
	}
	if r.Status != nil {
		job.Status = *r.Status
	}
	if r.PipelineStages != nil {
		job.PipelineStages = r.PipelineStages
	}
	job.ApplyDefaults()
}

// validatePipelineStages rejects the built-in stage names and duplicates.
func validatePipelineStages(stages []string) error {
	seen := make(map[string]bool, len(stages))
	for _, s := range stages {
		if s == StageApplied || s == StageRejected {
			return fmt.Errorf("pipeline stage %q is built in and cannot be configured", s)
		}
		if seen[s] {
			return fmt.Errorf("duplicate pipeline stage %q", s)
		}
		seen[s] = true
	}
	return nil
}
