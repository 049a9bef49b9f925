// Package intake accepts job applications and drives resume evaluation.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/evaluation"
	"github.com/jonathan/hiretrack/internal/metrics"
	"github.com/jonathan/hiretrack/internal/pipeline"
	"github.com/jonathan/hiretrack/internal/resume"
	"github.com/jonathan/hiretrack/internal/storage"
	"github.com/jonathan/hiretrack/internal/tasks"
	"github.com/jonathan/hiretrack/internal/types"
)

// MinEvaluableLength is the shortest resume text worth sending to the oracle.
const MinEvaluableLength = 50

const defaultBatchWorkers = 4

// Errors returned by the Service.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrInvalidResume     = errors.New("invalid resume")
	ErrNoResumeText      = errors.New("no resume text could be extracted")
	ErrNoResume          = errors.New("candidate has no resume")
)

// Store is the persistence intake needs.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.Candidate, error)
	CreateCandidate(ctx context.Context, c *types.Candidate) error
	UpdateEvaluation(ctx context.Context, id uuid.UUID, eval *types.Evaluation, resumeText string) error
	SetResumeURL(ctx context.Context, id uuid.UUID, url string) error
	ListUnscoredCandidates(ctx context.Context) ([]types.Candidate, error)
	CreatePipelineLog(ctx context.Context, log *types.PipelineLog) error
}

// Enqueuer accepts background tasks. *tasks.Pool implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, task tasks.Task) error
}

// Spawner runs supervised continuations. *tasks.Group implements it.
type Spawner interface {
	Go(name string, fn func(ctx context.Context) error) bool
}

// Options wires a Service.
type Options struct {
	Store     Store
	Storage   storage.Store
	Fetcher   *storage.Fetcher
	Extractor *resume.Extractor
	Oracle    evaluation.Evaluator
	Pipeline  *pipeline.Manager
	Queue     Enqueuer
	Group     Spawner
	Mode      string // config.IntakeModeSync or config.IntakeModeAsync
	// BatchWorkers bounds concurrent evaluations in a score-all run.
	BatchWorkers int
}

// Service implements application intake, re-scoring and batch scoring.
type Service struct {
	store     Store
	storage   storage.Store
	fetcher   *storage.Fetcher
	extractor *resume.Extractor
	oracle    evaluation.Evaluator
	pipeline  *pipeline.Manager
	queue     Enqueuer
	group     Spawner
	async     bool
	now       func() time.Time

	batchWorkers int
}

// New returns a Service. Missing collaborators get working defaults except
// Store, Oracle and Pipeline, which are required.
func New(opts Options) *Service {
	s := &Service{
		store:     opts.Store,
		storage:   opts.Storage,
		fetcher:   opts.Fetcher,
		extractor: opts.Extractor,
		oracle:    opts.Oracle,
		pipeline:  opts.Pipeline,
		queue:     opts.Queue,
		group:     opts.Group,
		async:     opts.Mode == config.IntakeModeAsync && opts.Queue != nil,
		now:       func() time.Time { return time.Now().UTC() },

		batchWorkers: opts.BatchWorkers,
	}
	if s.batchWorkers < 1 {
		s.batchWorkers = defaultBatchWorkers
	}
	if s.extractor == nil {
		s.extractor = resume.NewExtractor()
	}
	if s.fetcher == nil {
		s.fetcher = storage.NewFetcher(s.storage, 0)
	}
	return s
}

// Upload is a resume document received with the application.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Application is a validated application. Exactly one of ResumeURL and Upload is used;
// ResumeURL wins when both are set.
type Application struct {
	Name      string
	Email     string
	Phone     string
	CoverNote string
	JobID     uuid.UUID
	ResumeURL string
	Upload    *Upload
}

func (a *Application) source() string {
	if a.ResumeURL != "" {
		return "url"
	}
	return "upload"
}

// Apply creates the candidate and evaluates the resume. Extraction, evaluation
// and storage failures are logged and never fail the application.
func (s *Service) Apply(ctx context.Context, app Application) (*types.Candidate, error) {
	if app.ResumeURL == "" && app.Upload == nil {
		return nil, types.ErrResumeRequired
	}
	if app.ResumeURL == "" {
		if err := checkUpload(app.Upload); err != nil {
			return nil, err
		}
	} else if !s.fetcher.Accepts(app.ResumeURL) {
		return nil, fmt.Errorf("%w: resumeUrl must be an http(s) URL or an uploaded resume reference", ErrInvalidResume)
	}

	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	c := types.NewCandidate(strings.TrimSpace(app.Name), strings.TrimSpace(app.Email), strings.TrimSpace(app.Phone), job.ID, s.now())
	c.CoverNote = app.CoverNote
	c.ResumeURL = app.ResumeURL

	// Uploaded bytes are in hand, so they are always extracted here. A URL is
	// only downloaded here when scoring synchronously.
	var text string
	switch {
	case app.ResumeURL == "":
		text = s.extractor.Extract(app.Upload.Data, uploadFormat(app.Upload))
	case !s.async && s.oracle.Configured():
		text = s.download(ctx, app.ResumeURL)
	}
	c.ResumeText = text

	evaluable := s.oracle.Configured() && Evaluable(text)
	if !s.async && evaluable {
		if eval, err := s.oracle.Evaluate(ctx, text, job); err != nil {
			log.Printf("[apply] evaluation failed for %s: %v", c.Email, err)
		} else {
			eval.RecommendedStage = s.pipeline.Recommend(eval.TotalScore, job)
			c.ATS = eval
		}
	}

	if err := s.store.CreateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create candidate: %w", err)
	}
	metrics.Applications.WithLabelValues(app.source()).Inc()
	if err := s.store.CreatePipelineLog(ctx, types.NewPipelineLog(c.ID, c.History[0])); err != nil {
		log.Printf("[apply] failed to write pipeline log for %s: %v", c.ID, err)
	}
	log.Printf("[apply] candidate %s applied for %q", c.ID, job.Title)

	if app.ResumeURL == "" {
		s.storeUpload(c.ID, app.Upload)
	}
	if s.async && s.oracle.Configured() && (evaluable || app.ResumeURL != "") {
		if err := s.queue.Enqueue(ctx, tasks.NewTask(tasks.KindEvaluate, c.ID)); err != nil {
			log.Printf("[apply] failed to queue evaluation for %s: %v", c.ID, err)
		}
	}
	return c, nil
}

// Evaluable reports whether text is long enough to be scored.
func Evaluable(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= MinEvaluableLength
}

// HandleEvaluateTask scores a queued candidate. It writes only the evaluation,
// so a stage change made meanwhile is kept.
func (s *Service) HandleEvaluateTask(ctx context.Context, task tasks.Task) error {
	c, err := s.store.GetCandidate(ctx, task.CandidateID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		log.Printf("[ats] candidate %s no longer exists, skipping", task.CandidateID)
		return nil
	}
	if c.ATS != nil {
		return nil
	}
	job, err := s.store.GetJob(ctx, c.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, c.JobID)
	}

	text := c.ResumeText
	if text == "" && c.ResumeURL != "" {
		text = s.download(ctx, c.ResumeURL)
	}
	if !Evaluable(text) {
		log.Printf("[ats] candidate %s: resume text too short to score (%d chars)", c.ID, utf8.RuneCountInString(text))
		return nil
	}

	eval, err := s.oracle.Evaluate(ctx, text, job)
	if err != nil {
		return err
	}
	eval.RecommendedStage = s.pipeline.Recommend(eval.TotalScore, job)
	if err := s.store.UpdateEvaluation(ctx, c.ID, eval, text); err != nil {
		return fmt.Errorf("failed to store evaluation: %w", err)
	}
	return nil
}

// Rescore evaluates a candidate synchronously and moves it to the recommended
// stage. The resume is downloaded again; the cached text is used when that fails.
func (s *Service) Rescore(ctx context.Context, candidateID uuid.UUID) (*types.Candidate, error) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return nil, ErrCandidateNotFound
	}
	job, err := s.store.GetJob(ctx, c.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if !s.oracle.Configured() {
		return nil, evaluation.ErrNotConfigured
	}
	if c.ResumeURL == "" && c.ResumeText == "" {
		return nil, ErrNoResume
	}

	text := ""
	if c.ResumeURL != "" {
		text = s.download(ctx, c.ResumeURL)
	}
	if !Evaluable(text) {
		text = c.ResumeText
	}
	if !Evaluable(text) {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrNoResumeText, MinEvaluableLength)
	}

	eval, err := s.oracle.Evaluate(ctx, text, job)
	if err != nil {
		return nil, err
	}
	eval.RecommendedStage = s.pipeline.Recommend(eval.TotalScore, job)
	if err := s.store.UpdateEvaluation(ctx, c.ID, eval, text); err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}
	c.ATS = eval
	c.ResumeText = text

	if eval.RecommendedStage != "" {
		if _, err := s.pipeline.Transition(ctx, c, eval.RecommendedStage, types.ActorATS); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ScoreAll queues one batch evaluation of every candidate that has a resume and
// no evaluation. It returns how many candidates were found.
func (s *Service) ScoreAll(ctx context.Context) (int, error) {
	if !s.oracle.Configured() {
		return 0, evaluation.ErrNotConfigured
	}
	if s.queue == nil {
		return 0, errors.New("no task queue configured")
	}
	pending, err := s.store.ListUnscoredCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list candidates: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if err := s.queue.Enqueue(ctx, tasks.NewTask(tasks.KindScoreAll, uuid.Nil)); err != nil {
		return 0, fmt.Errorf("failed to queue batch scoring: %w", err)
	}
	log.Printf("[ats] score-all: %d candidates found", len(pending))
	return len(pending), nil
}

// HandleScoreAllTask evaluates every unscored candidate, at most batchWorkers
// at a time. A failing candidate is logged and the batch goes on.
func (s *Service) HandleScoreAllTask(ctx context.Context, _ tasks.Task) error {
	pending, err := s.store.ListUnscoredCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.batchWorkers)
	for _, c := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.HandleEvaluateTask(ctx, tasks.NewTask(tasks.KindEvaluate, c.ID)); err != nil {
				log.Printf("[ats] score-all: candidate %s failed: %v", c.ID, err)
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[ats] score-all: %d candidates processed, %d failed", len(pending), failed.Load())
	return ctx.Err()
}

// UploadURL signs a direct upload of a resume file. The returned Ref is then
// submitted as the application's resumeUrl.
func (s *Service) UploadURL(ctx context.Context, name, contentType string) (*storage.UploadTarget, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = resume.MIMEForName(name)
	}
	if !resume.AllowedMIME(contentType) {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidResume, contentType)
	}
	presigner, ok := s.storage.(storage.Presigner)
	if !ok {
		return nil, storage.ErrPresignNotSupported
	}
	target, err := presigner.PresignUpload(ctx, name, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload: %w", err)
	}
	return target, nil
}

// Document is a stored resume: either a URL to redirect to or the bytes.
type Document struct {
	RedirectURL string
	Name        string
	ContentType string
	Data        []byte
}

// Resume returns the stored resume of a candidate.
func (s *Service) Resume(ctx context.Context, candidateID uuid.UUID) (*Document, error) {
	c, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate: %w", err)
	}
	if c == nil {
		return nil, ErrCandidateNotFound
	}
	if c.ResumeURL == "" {
		return nil, ErrNoResume
	}
	if storage.IsHTTP(c.ResumeURL) {
		return &Document{RedirectURL: c.ResumeURL}, nil
	}
	data, err := s.fetcher.Fetch(ctx, c.ResumeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to read resume: %w", err)
	}
	name := c.ResumeURL[strings.LastIndex(c.ResumeURL, "/")+1:]
	return &Document{Name: name, ContentType: resume.MIMEForName(name), Data: data}, nil
}

func (s *Service) download(ctx context.Context, ref string) string {
	data, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		log.Printf("[apply] failed to fetch resume %s: %v", ref, err)
		return ""
	}
	return s.extractor.Extract(data, resume.FormatFromName(ref))
}

// storeUpload saves the upload in the background and attaches the reference.
func (s *Service) storeUpload(candidateID uuid.UUID, up *Upload) {
	if s.storage == nil {
		log.Printf("[storage] no resume store configured, dropping upload for %s", candidateID)
		return
	}
	upload := func(ctx context.Context) error {
		ref, err := s.storage.Put(ctx, storage.NewKey(up.Name), up.Data, up.ContentType)
		if err != nil {
			return fmt.Errorf("failed to store resume: %w", err)
		}
		return s.store.SetResumeURL(ctx, candidateID, ref)
	}
	if s.group == nil {
		if err := upload(context.Background()); err != nil {
			log.Printf("[storage] upload for %s failed: %v", candidateID, err)
		}
		return
	}
	s.group.Go("resume upload for "+candidateID.String(), upload)
}

func checkUpload(up *Upload) error {
	if len(up.Data) == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidResume)
	}
	if len(up.Data) > resume.MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidResume, resume.MaxUploadBytes)
	}
	if !resume.AllowedMIME(up.ContentType) {
		return fmt.Errorf("%w: unsupported file type %q", ErrInvalidResume, up.ContentType)
	}
	return nil
}

func uploadFormat(up *Upload) resume.Format {
	if f := resume.FormatFromMIME(up.ContentType); f != resume.FormatUnknown {
		return f
	}
	return resume.FormatFromName(up.Name)
}
