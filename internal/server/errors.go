// Package server provides the HTTP REST API for hiretrack.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/hiretrack/internal/db"
	"github.com/jonathan/hiretrack/internal/evaluation"
	"github.com/jonathan/hiretrack/internal/intake"
	"github.com/jonathan/hiretrack/internal/pipeline"
	"github.com/jonathan/hiretrack/internal/storage"
	"github.com/jonathan/hiretrack/internal/types"
)

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrNotFound indicates a missing resource
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUpstream indicates a failure of the evaluation oracle
type ErrUpstream struct {
	Err error
}

func (e *ErrUpstream) Error() string {
	return "evaluation failed: " + e.Err.Error()
}

func (e *ErrUpstream) Unwrap() error { return e.Err }

// HTTPStatus returns the appropriate HTTP status code for an error. Typed errors
// are matched anywhere in the chain, then the domain sentinels.
func HTTPStatus(err error) int {
	var (
		creds    *ErrInvalidCredentials
		notFound *ErrNotFound
		invalid  *ErrValidation
		upstream *ErrUpstream
		fields   validator.ValidationErrors
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &creds):
		return http.StatusUnauthorized
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid), errors.As(err, &fields):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, db.ErrNotFound),
		errors.Is(err, intake.ErrJobNotFound),
		errors.Is(err, intake.ErrCandidateNotFound),
		errors.Is(err, pipeline.ErrCandidateNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidStage),
		errors.Is(err, pipeline.ErrEmptyOverride),
		errors.Is(err, intake.ErrInvalidResume),
		errors.Is(err, intake.ErrNoResume),
		errors.Is(err, intake.ErrNoResumeText),
		errors.Is(err, types.ErrResumeRequired):
		return http.StatusBadRequest
	case errors.Is(err, evaluation.ErrNotConfigured),
		errors.Is(err, evaluation.ErrNoResult):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrPresignNotSupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// upstream marks oracle failures as ErrUpstream and returns other errors unchanged.
func upstream(err error) error {
	if errors.Is(err, evaluation.ErrNotConfigured) || errors.Is(err, evaluation.ErrNoResult) {
		return &ErrUpstream{Err: err}
	}
	return err
}

// validationError converts validator output into an ErrValidation for the first failing field.
func validationError(err error) error {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		return &ErrValidation{Field: fields[0].Field(), Message: fields[0].Tag()}
	}
	var invalid *ErrValidation
	if errors.As(err, &invalid) {
		return invalid
	}
	return &ErrValidation{Message: err.Error()}
}
