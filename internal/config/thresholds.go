package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultStageThresholds is used when ATS_STAGE_THRESHOLDS is unset.
const DefaultStageThresholds = "Screening:60,Interview:75,Offer:90"

// StageThreshold is the minimum score at which a stage is recommended.
type StageThreshold struct {
	Stage string
	Score int
}

// ParseStageThresholds parses "Stage:score,Stage:score". Entries are split on the
// first colon; blank entries are skipped. The result is ordered by descending score.
func ParseStageThresholds(s string) ([]StageThreshold, error) {
	var out []StageThreshold
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		stage, raw, ok := strings.Cut(entry, ":")
		stage = strings.TrimSpace(stage)
		if !ok || stage == "" {
			return nil, fmt.Errorf("invalid stage threshold %q: want Stage:score", entry)
		}
		score, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid score in stage threshold %q: %v", entry, err)
		}
		out = append(out, StageThreshold{Stage: stage, Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
