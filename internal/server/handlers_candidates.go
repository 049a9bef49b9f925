package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/hiretrack/internal/intake"
	"github.com/jonathan/hiretrack/internal/resume"
	"github.com/jonathan/hiretrack/internal/types"
)

// Application request limits: the resume plus room for the other fields.
// Base64 inflates the JSON form by a third.
var (
	maxMultipartApplyBody = int64(resume.MaxUploadBytes + 1<<20)
	maxJSONApplyBody      = int64(base64.StdEncoding.EncodedLen(resume.MaxUploadBytes) + 1<<20)
)

// defaultResumeName names base64 resumes sent without a file name.
const defaultResumeName = "resume.pdf"

// ---------------------------------------------------------------------
// Public intake
// ---------------------------------------------------------------------

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var (
		app intake.Application
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxMultipartApplyBody)
		app, err = multipartApplication(r)
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONApplyBody)
		app, err = jsonApplication(r)
	}
	if err != nil {
		s.fail(w, err)
		return
	}

	candidate, err := s.intake.Apply(r.Context(), app)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, types.ApplyResponse{
		Message:     "Application submitted successfully",
		CandidateID: candidate.ID.String(),
	})
}

// multipartApplication reads the form fields and the "resume" file part.
// A "resumeUrl" field is accepted in place of the file.
func multipartApplication(r *http.Request) (intake.Application, error) {
	if err := r.ParseMultipartForm(resume.MaxUploadBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			return intake.Application{}, fmt.Errorf("%w: file exceeds %d bytes", intake.ErrInvalidResume, resume.MaxUploadBytes)
		}
		return intake.Application{}, &ErrValidation{Message: "invalid multipart form"}
	}

	req := types.ApplyRequest{
		Name:      strings.TrimSpace(r.FormValue("name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Phone:     strings.TrimSpace(r.FormValue("phone")),
		JobID:     strings.TrimSpace(r.FormValue("jobId")),
		CoverNote: r.FormValue("coverNote"),
		ResumeURL: strings.TrimSpace(r.FormValue("resumeUrl")),
	}
	if err := req.ValidateFields(); err != nil {
		return intake.Application{}, validationError(err)
	}
	app, err := newApplication(&req)
	if err != nil {
		return intake.Application{}, err
	}

	file, header, err := r.FormFile("resume")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		if app.ResumeURL == "" {
			return intake.Application{}, types.ErrResumeRequired
		}
		return app, nil
	case err != nil:
		return intake.Application{}, &ErrValidation{Field: "resume", Message: err.Error()}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return intake.Application{}, fmt.Errorf("failed to read resume: %w", err)
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = resume.MIMEForName(header.Filename)
	}
	app.Upload = &intake.Upload{Name: header.Filename, ContentType: contentType, Data: data}
	return app, nil
}

// jsonApplication reads an application carrying a storage reference or a base64 document.
func jsonApplication(r *http.Request) (intake.Application, error) {
	var req types.ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		return intake.Application{}, err
	}
	if err := req.Validate(); err != nil {
		if errors.Is(err, types.ErrResumeRequired) {
			return intake.Application{}, err
		}
		return intake.Application{}, validationError(err)
	}

	app, err := newApplication(&req)
	if err != nil {
		return intake.Application{}, err
	}
	if app.ResumeURL != "" {
		return app, nil
	}

	data, err := decodeBase64Document(req.ResumeBase64)
	if err != nil {
		return intake.Application{}, fmt.Errorf("%w: resumeBase64 is not valid base64", intake.ErrInvalidResume)
	}
	name := strings.TrimSpace(req.ResumeName)
	if name == "" {
		name = defaultResumeName
	}
	app.Upload = &intake.Upload{Name: name, ContentType: resume.MIMEForName(name), Data: data}
	return app, nil
}

func newApplication(req *types.ApplyRequest) (intake.Application, error) {
	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return intake.Application{}, &ErrValidation{Field: "jobId", Message: "uuid"}
	}
	return intake.Application{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CoverNote: req.CoverNote,
		JobID:     jobID,
		ResumeURL: req.ResumeURL,
	}, nil
}

// decodeBase64Document accepts plain base64 or a data URL ("data:<mime>;base64,<data>").
func decodeBase64Document(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "candidateId", "candidate")
	if err != nil {
		s.fail(w, err)
		return
	}

	doc, err := s.intake.Resume(r.Context(), id)
	if err != nil {
		if errors.Is(err, intake.ErrNoResume) {
			s.fail(w, &ErrNotFound{Resource: "resume", ID: id.String()})
			return
		}
		s.fail(w, err)
		return
	}
	if doc.RedirectURL != "" {
		http.Redirect(w, r, doc.RedirectURL, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// ---------------------------------------------------------------------
// Admin candidate handlers
// ---------------------------------------------------------------------

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r, "jobId", "job")
	if err != nil {
		s.fail(w, err)
		return
	}

	candidates, err := s.store.ListCandidatesByJob(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if candidates == nil {
		candidates = []types.Candidate{}
	}
	s.jsonResponse(w, http.StatusOK, candidates)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.DeleteCandidate(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Candidate deleted"})
}

func (s *Server) handleAdminCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.store.ListAdminCandidates(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if candidates == nil {
		candidates = []types.AdminCandidate{}
	}
	s.jsonResponse(w, http.StatusOK, candidates)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.fail(w, err)
		return
	}

	var req types.OverrideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, validationError(err))
		return
	}

	candidate, err := s.pipeline.Override(r.Context(), id, &req)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.OverrideResponse{OK: true, Candidate: candidate})
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	var req types.UploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, validationError(err))
		return
	}

	target, err := s.intake.UploadURL(r.Context(), strings.TrimSpace(req.FileName), req.ContentType)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, types.UploadURLResponse{
		UploadURL: target.URL,
		Method:    target.Method,
		Headers:   target.Headers,
		Key:       target.Key,
		ResumeURL: target.Ref,
		ExpiresAt: target.ExpiresAt,
	})
}

func (s *Server) handleScoreAll(w http.ResponseWriter, r *http.Request) {
	found, err := s.intake.ScoreAll(r.Context())
	if err != nil {
		s.fail(w, upstream(err))
		return
	}
	message := fmt.Sprintf("Scoring started for %d candidates", found)
	if found == 0 {
		message = "No unscored candidates found"
	}
	s.jsonResponse(w, http.StatusOK, types.ScoreAllResponse{Message: message, CandidatesFound: found})
}

func (s *Server) handleMoveStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "candidate")
	if err != nil {
		s.fail(w, err)
		return
	}

	var req types.MoveStageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}

	candidate, err := s.pipeline.Move(r.Context(), id, strings.TrimSpace(req.Stage))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, candidate)
}

func (s *Server) handlePipelineLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "candidateId", "candidate")
	if err != nil {
		s.fail(w, err)
		return
	}

	logs, err := s.store.ListPipelineLogs(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if logs == nil {
		logs = []types.PipelineLog{}
	}
	s.jsonResponse(w, http.StatusOK, logs)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req types.ScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.fail(w, validationError(err))
		return
	}

	id, err := uuid.Parse(req.CandidateID)
	if err != nil {
		s.fail(w, &ErrValidation{Field: "candidateId", Message: "uuid"})
		return
	}

	candidate, err := s.intake.Rescore(r.Context(), id)
	if err != nil {
		s.fail(w, upstream(err))
		return
	}
	s.jsonResponse(w, http.StatusOK, types.ScoreResponse{OK: true, Candidate: candidate})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dashboard.Stats(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}
