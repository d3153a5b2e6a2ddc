package judge

import (
	"context"
	"regexp"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
)

var (
	negIsRe = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9_-]*(?:\s+[A-Za-z0-9_-]+)?)\s+is\s+not\b`)
	posIsRe = regexp.MustCompile(`(?i)\b([A-Za-z][A-Za-z0-9_-]*(?:\s+[A-Za-z0-9_-]+)?)\s+is\s+(?:not\s+)?`)
)

// ConsistencyJudge regex-mines simple "X is" vs "X is not" contradictions
// within a single artifact's own text, where X is the one or two words
// right before "is", and penalizes when the same subject appears on both
// sides.
type ConsistencyJudge struct{}

func (j *ConsistencyJudge) Name() string { return "consistency" }

func (j *ConsistencyJudge) Critique(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	negatives := map[string]bool{}
	for _, m := range negIsRe.FindAllStringSubmatch(text, -1) {
		negatives[normalizeSubject(m[1])] = true
	}
	positives := map[string]bool{}
	for _, m := range posIsRe.FindAllStringSubmatch(text, -1) {
		subj := normalizeSubject(m[1])
		// posIsRe also matches the "is not" phrasing; only count it as
		// positive when this match is not itself a negation.
		if !strings.Contains(strings.ToLower(m[0]), " is not ") {
			positives[subj] = true
		}
	}

	intersect := 0
	for s := range positives {
		if negatives[s] {
			intersect++
		}
	}

	score := 0.85
	guidance := map[string]float64{"structure": 0}
	if intersect > 0 {
		score = 0.6
		guidance["structure"] = 0.1 * float64(intersect)
	}
	return bbtypes.Critique{Score: score, Guidance: guidance}, nil
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
