package intake

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/db/dbtest"
	"github.com/jonathan/hiretrack/internal/evaluation"
	"github.com/jonathan/hiretrack/internal/pipeline"
	"github.com/jonathan/hiretrack/internal/resume"
	"github.com/jonathan/hiretrack/internal/storage"
	"github.com/jonathan/hiretrack/internal/tasks"
	"github.com/jonathan/hiretrack/internal/types"
)

const resumeText = "Jane Doe. Senior Go engineer with eight years building distributed systems and APIs."

type fakeOracle struct {
	mu         sync.Mutex
	configured bool
	score      int
	err        error
	texts      []string
}

func (f *fakeOracle) Configured() bool { return f.configured }

func (f *fakeOracle) Evaluate(_ context.Context, text string, _ *types.Job) (*types.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Evaluation{
		EvaluatedAt: time.Now(),
		TotalScore:  f.score,
		Decision:    types.DecisionForScore(f.score),
	}, nil
}

func (f *fakeOracle) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type fakeQueue struct {
	tasks []tasks.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task tasks.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type fixture struct {
	svc    *Service
	store  *dbtest.Memory
	oracle *fakeOracle
	queue  *fakeQueue
	group  *tasks.Group
	job    *types.Job
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	store := dbtest.New()
	job := &types.Job{Title: "Go Engineer", Description: "Build services"}
	job.ApplyDefaults()
	require.NoError(t, store.CreateJob(context.Background(), job))

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	thresholds, err := config.ParseStageThresholds(config.DefaultStageThresholds)
	require.NoError(t, err)

	f := &fixture{
		store:  store,
		oracle: &fakeOracle{configured: true, score: 80},
		queue:  &fakeQueue{},
		group:  tasks.NewGroup(),
		job:    job,
	}
	f.svc = New(Options{
		Store:    store,
		Storage:  local,
		Fetcher:  storage.NewFetcher(local, 5*time.Second),
		Oracle:   f.oracle,
		Pipeline: pipeline.NewManager(store, thresholds),
		Queue:    f.queue,
		Group:    f.group,
		Mode:     mode,
	})
	return f
}

func (f *fixture) application(up *Upload) Application {
	return Application{
		Name:   " Jane Doe ",
		Email:  "jane@example.com",
		Phone:  "555-0100",
		JobID:  f.job.ID,
		Upload: up,
	}
}

func textUpload(body string) *Upload {
	return &Upload{Name: "cv.txt", ContentType: resume.MIMEText, Data: []byte(body)}
}

func resumeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApply_UploadSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)
	require.NoError(t, f.group.Shutdown(ctx))

	assert.Equal(t, "Jane Doe", c.Name)
	assert.Equal(t, types.StageApplied, c.Stage)
	require.Len(t, c.History, 1)
	assert.Equal(t, types.Transition{From: "", To: types.StageApplied, Time: c.History[0].Time}, c.History[0])

	require.NotNil(t, c.ATS)
	assert.Equal(t, 80, c.ATS.TotalScore)
	assert.Equal(t, "Interview", c.ATS.RecommendedStage)
	assert.Equal(t, types.StageApplied, c.Stage, "intake only records the recommendation")

	stored, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.ATS)
	assert.Equal(t, resumeText, stored.ResumeText)
	assert.True(t, strings.HasPrefix(stored.ResumeURL, "local://resumes/"), stored.ResumeURL)

	logs := f.store.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "", logs[0].OldStage)
	assert.Equal(t, types.StageApplied, logs[0].NewStage)
	assert.Empty(t, f.queue.tasks)
}

func TestApply_ShortResumeIsNotEvaluated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	c, err := f.svc.Apply(ctx, f.application(textUpload(strings.Repeat("x", MinEvaluableLength-1))))
	require.NoError(t, err)
	assert.Nil(t, c.ATS)
	assert.Zero(t, f.oracle.calls())
}

func TestApply_OracleFailureDoesNotFailIntake(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	f.oracle.err = evaluation.ErrNoResult

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)
	assert.Nil(t, c.ATS)

	stored, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ATS)
}

func TestApply_OracleNotConfigured(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	f.oracle.configured = false

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)
	assert.Nil(t, c.ATS)
	assert.Zero(t, f.oracle.calls())
}

func TestApply_ResumeURLSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	srv := resumeServer(t, resumeText)

	app := f.application(nil)
	app.ResumeURL = srv.URL + "/uploads/jane.txt"
	c, err := f.svc.Apply(ctx, app)
	require.NoError(t, err)

	assert.Equal(t, app.ResumeURL, c.ResumeURL)
	require.NotNil(t, c.ATS)
	assert.Equal(t, []string{resumeText}, f.oracle.texts)
}

func TestApply_ResumeURLDownloadFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	app := f.application(nil)
	app.ResumeURL = srv.URL + "/missing.pdf"
	c, err := f.svc.Apply(ctx, app)
	require.NoError(t, err)
	assert.Nil(t, c.ATS)
	assert.Zero(t, f.oracle.calls())
}

func TestApply_Async(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeAsync)

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)
	assert.Nil(t, c.ATS)
	assert.Zero(t, f.oracle.calls())
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, c.ID, f.queue.tasks[0].CandidateID)

	require.NoError(t, f.svc.HandleEvaluateTask(ctx, f.queue.tasks[0]))
	stored, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ATS)
	assert.Equal(t, "Interview", stored.ATS.RecommendedStage)
}

func TestApply_AsyncQueueFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, config.IntakeModeAsync)
	f.queue.err = tasks.ErrQueueFull

	_, err := f.svc.Apply(context.Background(), f.application(textUpload(resumeText)))
	assert.NoError(t, err)
}

func TestApply_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	_, err := f.svc.Apply(ctx, f.application(nil))
	assert.ErrorIs(t, err, types.ErrResumeRequired)

	_, err = f.svc.Apply(ctx, f.application(&Upload{Name: "cv.png", ContentType: "image/png", Data: []byte("x")}))
	assert.ErrorIs(t, err, ErrInvalidResume)

	_, err = f.svc.Apply(ctx, f.application(&Upload{Name: "cv.pdf", ContentType: resume.MIMEPDF}))
	assert.ErrorIs(t, err, ErrInvalidResume)

	big := &Upload{Name: "cv.pdf", ContentType: resume.MIMEPDF, Data: make([]byte, resume.MaxUploadBytes+1)}
	_, err = f.svc.Apply(ctx, f.application(big))
	assert.ErrorIs(t, err, ErrInvalidResume)

	app := f.application(textUpload(resumeText))
	app.JobID = uuid.New()
	_, err = f.svc.Apply(ctx, app)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestApply_CreateFailure(t *testing.T) {
	f := newFixture(t, config.IntakeModeSync)
	f.store.FailCandidateWrites = true

	_, err := f.svc.Apply(context.Background(), f.application(textUpload(resumeText)))
	assert.ErrorIs(t, err, dbtest.ErrInjected)
}

func TestHandleEvaluateTask_KeepsConcurrentStageChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeAsync)

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)

	stored, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	stored.MoveTo("Screening", types.ActorAdmin, time.Now())
	require.NoError(t, f.store.UpdateCandidate(ctx, stored))

	require.NoError(t, f.svc.HandleEvaluateTask(ctx, f.queue.tasks[0]))

	final, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Screening", final.Stage)
	assert.Len(t, final.History, 2)
	assert.NotNil(t, final.ATS)
}

func TestHandleEvaluateTask_Skips(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeAsync)

	assert.NoError(t, f.svc.HandleEvaluateTask(ctx, tasks.NewTask(tasks.KindEvaluate, uuid.New())))

	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeText = "too short"
	require.NoError(t, f.store.CreateCandidate(ctx, c))
	assert.NoError(t, f.svc.HandleEvaluateTask(ctx, tasks.NewTask(tasks.KindEvaluate, c.ID)))
	assert.Zero(t, f.oracle.calls())
}

func TestHandleEvaluateTask_OracleFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeAsync)
	f.oracle.err = evaluation.ErrNoResult

	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeText = resumeText
	require.NoError(t, f.store.CreateCandidate(ctx, c))

	err := f.svc.HandleEvaluateTask(ctx, tasks.NewTask(tasks.KindEvaluate, c.ID))
	assert.ErrorIs(t, err, evaluation.ErrNoResult)
}

func TestRescore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	f.oracle.score = 92
	srv := resumeServer(t, resumeText)

	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeURL = srv.URL + "/a.txt"
	require.NoError(t, f.store.CreateCandidate(ctx, c))

	got, err := f.svc.Rescore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 92, got.ATS.TotalScore)
	assert.Equal(t, "Offer", got.ATS.RecommendedStage)
	assert.Equal(t, "Offer", got.Stage)
	require.Len(t, got.History, 2)
	assert.Equal(t, types.ActorATS, got.History[1].By)

	stored, err := f.store.GetCandidate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Offer", stored.Stage)
	assert.Equal(t, 92, stored.ATS.TotalScore)
	assert.Len(t, f.store.Logs(), 1)
}

func TestRescore_FallsBackToCachedText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	f.oracle.score = 30
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeURL = srv.URL + "/gone.pdf"
	c.ResumeText = resumeText
	require.NoError(t, f.store.CreateCandidate(ctx, c))

	got, err := f.svc.Rescore(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{resumeText}, f.oracle.texts)
	assert.Empty(t, got.ATS.RecommendedStage)
	assert.Equal(t, types.StageApplied, got.Stage)
}

func TestRescore_ShortResumeNotScored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeText = strings.Repeat("x", MinEvaluableLength-1)
	require.NoError(t, f.store.CreateCandidate(ctx, c))

	_, err := f.svc.Rescore(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNoResumeText)
	assert.Zero(t, f.oracle.calls())
}

func TestRescore_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	_, err := f.svc.Rescore(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCandidateNotFound)

	bare := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	require.NoError(t, f.store.CreateCandidate(ctx, bare))
	_, err = f.svc.Rescore(ctx, bare.ID)
	assert.ErrorIs(t, err, ErrNoResume)

	scored := types.NewCandidate("B", "b@example.com", "1", f.job.ID, time.Now())
	scored.ResumeText = resumeText
	require.NoError(t, f.store.CreateCandidate(ctx, scored))
	f.oracle.err = evaluation.ErrNoResult
	_, err = f.svc.Rescore(ctx, scored.ID)
	assert.ErrorIs(t, err, evaluation.ErrNoResult)

	f.oracle.configured = false
	_, err = f.svc.Rescore(ctx, scored.ID)
	assert.ErrorIs(t, err, evaluation.ErrNotConfigured)

	orphan := types.NewCandidate("C", "c@example.com", "1", uuid.New(), time.Now())
	require.NoError(t, f.store.CreateCandidate(ctx, orphan))
	_, err = f.svc.Rescore(ctx, orphan.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScoreAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	pending := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	pending.ResumeURL = "local://resumes/a.pdf"
	require.NoError(t, f.store.CreateCandidate(ctx, pending))

	scored := types.NewCandidate("B", "b@example.com", "1", f.job.ID, time.Now())
	scored.ResumeURL = "local://resumes/b.pdf"
	scored.ATS = &types.Evaluation{EvaluatedAt: time.Now(), TotalScore: 50}
	require.NoError(t, f.store.CreateCandidate(ctx, scored))

	noResume := types.NewCandidate("C", "c@example.com", "1", f.job.ID, time.Now())
	require.NoError(t, f.store.CreateCandidate(ctx, noResume))

	found, err := f.svc.ScoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	require.Len(t, f.queue.tasks, 1)
	assert.Equal(t, tasks.KindScoreAll, f.queue.tasks[0].Kind)

	f.oracle.configured = false
	_, err = f.svc.ScoreAll(ctx)
	assert.ErrorIs(t, err, evaluation.ErrNotConfigured)
}

func TestScoreAll_NothingPending(t *testing.T) {
	f := newFixture(t, config.IntakeModeSync)

	found, err := f.svc.ScoreAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, found)
	assert.Empty(t, f.queue.tasks)
}

func TestScoreAll_QueueFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)
	c := types.NewCandidate("A", "a@example.com", "1", f.job.ID, time.Now())
	c.ResumeURL = "local://resumes/a.pdf"
	require.NoError(t, f.store.CreateCandidate(ctx, c))

	f.queue.err = tasks.ErrQueueFull
	_, err := f.svc.ScoreAll(ctx)
	assert.ErrorIs(t, err, tasks.ErrQueueFull)
}

func TestScoreAll_ScoresMoreCandidatesThanQueueHolds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	total := tasks.DefaultMemoryQueueSize + 76
	for i := range total {
		c := types.NewCandidate("A", fmt.Sprintf("a%d@example.com", i), "1", f.job.ID, time.Now())
		c.ResumeURL = fmt.Sprintf("local://resumes/a%d.txt", i)
		c.ResumeText = resumeText
		require.NoError(t, f.store.CreateCandidate(ctx, c))
	}

	pool := tasks.NewPool(tasks.NewMemoryQueue(0), 2)
	pool.Handle(tasks.KindScoreAll, f.svc.HandleScoreAllTask)
	svc := New(Options{Store: f.store, Oracle: f.oracle, Pipeline: f.svc.pipeline, Queue: pool})
	pool.Start(ctx)

	found, err := svc.ScoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, total, found)

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(shutdownCtx))

	assert.Equal(t, total, f.oracle.calls())
	unscored, err := f.store.ListUnscoredCandidates(ctx)
	require.NoError(t, err)
	assert.Empty(t, unscored)
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	c, err := f.svc.Apply(ctx, f.application(textUpload(resumeText)))
	require.NoError(t, err)
	require.NoError(t, f.group.Shutdown(ctx))

	doc, err := f.svc.Resume(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, doc.RedirectURL)
	assert.Equal(t, resumeText, string(doc.Data))
	assert.Equal(t, resume.MIMEText, doc.ContentType)
	assert.True(t, strings.HasSuffix(doc.Name, "cv.txt"))

	remote := types.NewCandidate("R", "r@example.com", "1", f.job.ID, time.Now())
	remote.ResumeURL = "https://cdn.example.com/r.pdf"
	require.NoError(t, f.store.CreateCandidate(ctx, remote))
	doc, err = f.svc.Resume(ctx, remote.ID)
	require.NoError(t, err)
	assert.Equal(t, remote.ResumeURL, doc.RedirectURL)

	_, err = f.svc.Resume(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrCandidateNotFound)

	bare := types.NewCandidate("B", "b@example.com", "1", f.job.ID, time.Now())
	require.NoError(t, f.store.CreateCandidate(ctx, bare))
	_, err = f.svc.Resume(ctx, bare.ID)
	assert.True(t, errors.Is(err, ErrNoResume))
}

func TestApply_RejectsForeignResumeReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	for _, ref := range []string{
		"s3://other-bucket/secret",
		"local://config.yaml",
		"local://resumes/../config.yaml",
		"file:///etc/passwd",
	} {
		app := f.application(nil)
		app.ResumeURL = ref
		_, err := f.svc.Apply(ctx, app)
		assert.ErrorIs(t, err, ErrInvalidResume, ref)
	}
	assert.Empty(t, f.store.Logs())

	app := f.application(nil)
	app.ResumeURL = "local://resumes/0f8e-cv.pdf"
	c, err := f.svc.Apply(ctx, app)
	require.NoError(t, err)
	assert.Equal(t, app.ResumeURL, c.ResumeURL)
}

type presigningStore struct {
	*storage.LocalStore
}

func (p presigningStore) PresignUpload(_ context.Context, filename, contentType string) (*storage.UploadTarget, error) {
	key := storage.NewKey(filename)
	return &storage.UploadTarget{
		URL:     "https://uploads.example.com/" + key,
		Method:  http.MethodPut,
		Headers: map[string]string{"Content-Type": contentType},
		Key:     key,
		Ref:     "local://" + key,
	}, nil
}

func TestUploadURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.IntakeModeSync)

	_, err := f.svc.UploadURL(ctx, "cv.pdf", "application/pdf")
	assert.ErrorIs(t, err, storage.ErrPresignNotSupported)

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	svc := New(Options{Store: f.store, Storage: presigningStore{local}, Oracle: f.oracle, Pipeline: f.svc.pipeline})

	target, err := svc.UploadURL(ctx, "cv.docx", "")
	require.NoError(t, err)
	assert.Equal(t, resume.MIMEDOCX, target.Headers["Content-Type"])
	assert.True(t, strings.HasPrefix(target.Key, storage.KeyPrefix))

	_, err = svc.UploadURL(ctx, "cv.exe", "application/x-msdownload")
	assert.ErrorIs(t, err, ErrInvalidResume)

	app := f.application(nil)
	app.ResumeURL = target.Ref
	_, err = svc.Apply(ctx, app)
	assert.NoError(t, err)
}
