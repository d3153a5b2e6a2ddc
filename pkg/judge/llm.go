package judge

import (
	"context"
	"fmt"
	"math"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// llmJudgePrompt mirrors the orchestrator's other judge-facing prompt
// templates: a fixed instruction plus the text and contract under review.
const llmJudgePrompt = `You are a quality judge. Given the text and contract below, return a JSON object
{"score": <0..1>, "comments": "...", "guidance": {"structure": <0..1>, "brevity": <0..1>, "evidence": <0..1>}}.

TEXT:
%s

CONTRACT:
%s
`

// LLMJudge sends the text and contract to the solver with a dedicated
// judge prompt, parses the first JSON object, and — to absorb model
// flakiness — runs the judge twice: if the two scores disagree by more
// than 0.3, the one nearer the 0.7 neutral baseline is kept; otherwise
// the two are averaged.
type LLMJudge struct {
	Solver bbtypes.Solver
}

func (j *LLMJudge) Name() string { return "llm-judge" }

func (j *LLMJudge) Critique(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	if j.Solver == nil {
		return bbtypes.Critique{Score: 0.7, Comments: "LLM judge unavailable.", Guidance: map[string]float64{}}, nil
	}

	a, errA := j.once(ctx, text, contract)
	b, errB := j.once(ctx, text, contract)
	if errA != nil && errB != nil {
		return bbtypes.Critique{Score: 0.68, Comments: "LLM judge error.", Guidance: map[string]float64{}}, nil
	}
	if errA != nil {
		return b, nil
	}
	if errB != nil {
		return a, nil
	}

	if math.Abs(a.Score-b.Score) > 0.3 {
		if math.Abs(a.Score-0.7) <= math.Abs(b.Score-0.7) {
			return a, nil
		}
		return b, nil
	}

	merged := a
	merged.Score = (a.Score + b.Score) / 2
	return merged, nil
}

func (j *LLMJudge) once(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	prompt := fmt.Sprintf(llmJudgePrompt, text, contract.MarkdownSection())

	res, err := j.Solver.Solve(ctx, prompt, map[string]any{"mode": "judge"})
	if err != nil {
		return bbtypes.Critique{}, err
	}

	obj, ok := bbutil.FirstJSONObject(res.Text)
	if !ok {
		return bbtypes.Critique{Score: 0.72, Guidance: map[string]float64{}}, nil
	}

	var parsed struct {
		Score    float64            `json:"score"`
		Comments string             `json:"comments"`
		Guidance map[string]float64 `json:"guidance"`
	}
	if !bbutil.SafeJSONUnmarshal(obj, &parsed) {
		return bbtypes.Critique{Score: 0.72, Guidance: map[string]float64{}}, nil
	}
	if parsed.Guidance == nil {
		parsed.Guidance = map[string]float64{}
	}
	if parsed.Score == 0 {
		parsed.Score = 0.72
	}
	return bbtypes.Critique{Score: parsed.Score, Comments: parsed.Comments, Guidance: parsed.Guidance}, nil
}
