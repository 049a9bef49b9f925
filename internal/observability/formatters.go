// Package observability provides boxed text output for the hiretrack CLI.
package observability

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jonathan/hiretrack/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted CLI output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintDashboard outputs job counts, candidates per stage and recent activity.
func (p *Printer) PrintDashboard(stats *types.DashboardStats) {
	if stats == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Jobs:       %d (%d open)\n", stats.TotalJobs, stats.OpenJobs)
	fmt.Fprintf(&sb, "Candidates: %d\n", stats.TotalCandidates)

	if len(stats.StageMap) > 0 {
		sb.WriteString("\nBy stage:\n")
		stages := make([]string, 0, len(stats.StageMap))
		for stage := range stats.StageMap {
			stages = append(stages, stage)
		}
		// busiest stage first, then by name
		slices.SortFunc(stages, func(a, b string) int {
			if d := stats.StageMap[b] - stats.StageMap[a]; d != 0 {
				return d
			}
			return strings.Compare(a, b)
		})
		for _, stage := range stages {
			fmt.Fprintf(&sb, "  • %-20s %d\n", stage, stats.StageMap[stage])
		}
	}

	if len(stats.RecentActivity) > 0 {
		sb.WriteString("\nRecent activity:\n")
		count := min(len(stats.RecentActivity), maxItemsToShow)
		for _, a := range stats.RecentActivity[:count] {
			fmt.Fprintf(&sb, "  %s  %s\n", a.Time.Format("Jan 02 15:04"), a.Message)
		}
		if len(stats.RecentActivity) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(stats.RecentActivity)-maxItemsToShow)
		}
	}

	p.printBox("HIRING DASHBOARD", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJobs outputs one line per job with its pipeline.
func (p *Printer) PrintJobs(title string, jobs []types.Job) {
	if len(jobs) == 0 {
		p.printBox(title, "No jobs")
		return
	}

	var sb strings.Builder
	for i, job := range jobs {
		fmt.Fprintf(&sb, "%s [%s]\n", job.Title, job.Status)
		fmt.Fprintf(&sb, "  %s · %s · %s\n", job.Department, job.Location, job.Type)
		fmt.Fprintf(&sb, "  %s\n", strings.Join(job.ValidStages(), " → "))
		if i < len(jobs)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox(title, sb.String())
}

// PrintEvaluation outputs an evaluation with its breakdown and top strengths and gaps.
func (p *Printer) PrintEvaluation(name string, eval *types.Evaluation) {
	if eval == nil {
		p.printBox("EVALUATION: "+name, "Not scored")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Score:    %d/100 (%s)\n", eval.TotalScore, eval.Decision)
	if eval.RecommendedStage != "" {
		fmt.Fprintf(&sb, "Suggests: %s\n", eval.RecommendedStage)
	}
	b := eval.Breakdown
	fmt.Fprintf(&sb, "Skills %d · Experience %d · Education %d · Keywords %d\n",
		b.SkillMatch, b.ExperienceMatch, b.EducationMatch, b.KeywordMatch)

	writeList(&sb, "Strengths", eval.Strengths)
	writeList(&sb, "Gaps", eval.Gaps)

	p.printBox("EVALUATION: "+name, strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", label)
	count := min(len(items), 3)
	for _, item := range items[:count] {
		fmt.Fprintf(sb, "  • %s\n", item)
	}
	if len(items) > 3 {
		fmt.Fprintf(sb, "  ... and %d more\n", len(items)-3)
	}
}
