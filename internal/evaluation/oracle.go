// Package evaluation scores resumes against job postings using an LLM.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/jonathan/hiretrack/internal/llm"
	"github.com/jonathan/hiretrack/internal/metrics"
	"github.com/jonathan/hiretrack/internal/prompts"
	"github.com/jonathan/hiretrack/internal/schemas"
	"github.com/jonathan/hiretrack/internal/types"
)

var (
	// ErrNotConfigured is returned when no oracle credential is set.
	ErrNotConfigured = errors.New("evaluation oracle is not configured")
	// ErrNoResult is returned when the oracle fails or its reply is unusable.
	ErrNoResult = errors.New("evaluation oracle returned no usable result")
)

// Request parameters for every evaluation call.
const (
	Temperature      = 0.3
	MaxTokens        = 500
	DefaultCharLimit = 3000
	// MaxListEntries caps strengths and gaps.
	MaxListEntries = 25
)

// Evaluator scores one resume against one job.
type Evaluator interface {
	Evaluate(ctx context.Context, resumeText string, job *types.Job) (*types.Evaluation, error)
	Configured() bool
}

// Oracle is the Evaluator backed by an llm.Client.
type Oracle struct {
	client    llm.Client
	charLimit int
	now       func() time.Time
}

var _ Evaluator = (*Oracle)(nil)

// New returns an Oracle. A nil client yields an oracle whose Evaluate always
// fails with ErrNotConfigured.
func New(client llm.Client, charLimit int) *Oracle {
	if charLimit <= 0 {
		charLimit = DefaultCharLimit
	}
	return &Oracle{client: client, charLimit: charLimit, now: time.Now}
}

// Configured reports whether the oracle has a client.
func (o *Oracle) Configured() bool {
	return o != nil && o.client != nil
}

// Evaluate makes one oracle call and returns the normalised evaluation.
func (o *Oracle) Evaluate(ctx context.Context, resumeText string, job *types.Job) (*types.Evaluation, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrNoResult)
	}

	log.Printf("[ats] scoring resume for job %q with %s", job.Title, o.client.Model())
	raw, err := o.client.Complete(ctx, BuildRequest(resumeText, job, o.charLimit))
	if err != nil {
		metrics.Evaluations.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}

	r, err := ParseReply(raw)
	if err != nil {
		metrics.Evaluations.WithLabelValues(metrics.OutcomeFailure).Inc()
		log.Printf("[ats] unusable reply: %s", truncate(raw, 200))
		return nil, err
	}

	eval := r.normalize(o.now())
	metrics.Evaluations.WithLabelValues(metrics.OutcomeSuccess).Inc()
	log.Printf("[ats] scored %d (%s) for job %q", eval.TotalScore, eval.Decision, job.Title)
	return eval, nil
}

// BuildRequest renders the prompt for job and the first charLimit characters of the resume.
func BuildRequest(resumeText string, job *types.Job, charLimit int) llm.Request {
	user := prompts.Format(prompts.MustGet("evaluation.json", "user"), map[string]string{
		"Title":        job.Title,
		"Description":  job.Description,
		"Skills":       joinOrNA(job.Skills),
		"Requirements": joinOrNA(job.Requirements),
		"Resume":       truncate(resumeText, charLimit),
	})
	return llm.Request{
		System:      prompts.MustGet("evaluation.json", "system"),
		User:        user,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		JSON:        true,
	}
}

// Reply is the JSON object the oracle is asked to return.
type Reply struct {
	TotalScore float64 `json:"totalScore"`
	Decision   string  `json:"decision"`
	Breakdown  struct {
		SkillMatch      float64 `json:"skill_match"`
		ExperienceMatch float64 `json:"experience_match"`
		EducationMatch  float64 `json:"education_match"`
		KeywordMatch    float64 `json:"keyword_match"`
	} `json:"breakdown"`
	Explanation string   `json:"explanation"`
	Strengths   []string `json:"strengths"`
	Gaps        []string `json:"gaps"`
}

// ParseReply coerces raw oracle output into a Reply. Markdown fences are
// stripped; when the remainder is not JSON the outermost {...} span is tried.
func ParseReply(raw string) (*Reply, error) {
	doc := llm.CleanJSONBlock(raw)
	if !json.Valid([]byte(doc)) {
		doc = llm.ExtractJSONObject(doc)
		if doc == "" || !json.Valid([]byte(doc)) {
			return nil, fmt.Errorf("%w: reply is not JSON", ErrNoResult)
		}
	}
	if err := schemas.Validate(schemas.Evaluation, []byte(doc)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}

	var r Reply
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}
	return &r, nil
}

func (r *Reply) normalize(now time.Time) *types.Evaluation {
	eval := &types.Evaluation{
		EvaluatedAt: now,
		TotalScore:  clampScore(r.TotalScore),
		Breakdown: types.Breakdown{
			SkillMatch:      clampScore(r.Breakdown.SkillMatch),
			ExperienceMatch: clampScore(r.Breakdown.ExperienceMatch),
			EducationMatch:  clampScore(r.Breakdown.EducationMatch),
			KeywordMatch:    clampScore(r.Breakdown.KeywordMatch),
		},
		Explanation: strings.TrimSpace(r.Explanation),
		Strengths:   capList(r.Strengths),
		Gaps:        capList(r.Gaps),
	}
	eval.Decision = strings.TrimSpace(r.Decision)
	if !types.IsDecision(eval.Decision) {
		eval.Decision = types.DecisionForScore(eval.TotalScore)
	}
	return eval
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func capList(items []string) []string {
	out := make([]string, 0, min(len(items), MaxListEntries))
	for _, item := range items {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxListEntries {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinOrNA(items []string) string {
	if len(items) == 0 {
		return "N/A"
	}
	return strings.Join(items, ", ")
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
