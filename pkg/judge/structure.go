package judge

import (
	"context"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// StructureJudge checks that the contract's markdown_section header is
// present and that the content isn't suspiciously thin.
type StructureJudge struct{}

func (j *StructureJudge) Name() string { return "structure" }

func (j *StructureJudge) Critique(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	desired := strings.TrimSpace(contract.MarkdownSection())
	score := 0.85
	var comments []string
	guidance := map[string]float64{"structure": 0, "brevity": 0, "evidence": 0}

	if desired != "" {
		if ok, _ := bbutil.EnsureHeader(text, desired); !ok {
			score -= 0.2
			guidance["structure"] += 0.2
			comments = append(comments, "Missing header: '"+desired+"'.")
		}
	}
	if len(strings.TrimSpace(text)) < 50 {
		score -= 0.15
		guidance["evidence"] += 0.15
		comments = append(comments, "Thin content; add details.")
	}

	return bbtypes.Critique{
		Score:    score,
		Comments: strings.Join(comments, " "),
		Guidance: guidance,
	}, nil
}
