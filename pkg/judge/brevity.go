package judge

import (
	"context"
	"math"
	"regexp"

	"github.com/reasonline/engine/pkg/bbtypes"
)

var brevityWordRe = regexp.MustCompile(`\b\w+\b`)

// BrevityJudge penalizes artifacts over 800 or under 80 words.
type BrevityJudge struct{}

func (j *BrevityJudge) Name() string { return "brevity" }

func (j *BrevityJudge) Critique(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	words := len(brevityWordRe.FindAllString(text, -1))
	score := 0.9
	if words > 800 || words < 80 {
		score = 0.72
	}
	return bbtypes.Critique{
		Score:    score,
		Guidance: map[string]float64{"brevity": math.Abs(float64(words-400)) / 400},
	}, nil
}
