package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/executor"
)

const cohesionTimeout = 50 * time.Second

// cohesionPass asks the solver for {recommendations, revised} over the
// composed document and, when applyGlobalRecs is enabled and
// recommendations were returned, issues a second call to apply them.
func (o *Orchestrator) cohesionPass(ctx context.Context, query, composed string) ([]string, string) {
	prompt := fmt.Sprintf(cohesionPrompt, query, composed)
	raw, _, err := executor.HedgedSolve(ctx, o.Solver, o.Limiter, prompt, map[string]any{"mode": "cohesion"}, cohesionTimeout, o.hedgeDelay())
	if err != nil {
		o.Log.Warn("cohesion pass failed", "error", err)
		return nil, composed
	}

	obj, ok := bbutil.FirstJSONObject(raw)
	var data struct {
		Recommendations []string `json:"recommendations"`
		Revised         string   `json:"revised"`
	}
	if ok {
		sonic.UnmarshalString(obj, &data)
	}
	recs := data.Recommendations
	if len(recs) > 14 {
		recs = recs[:14]
	}
	revised := data.Revised
	if revised == "" {
		revised = composed
	}

	if o.Cfg.Snapshot().ApplyGlobalRecs && len(recs) > 0 {
		applyPrompt := fmt.Sprintf(cohesionApplyPrompt, joinRecs(recs), revised)
		if out, _, err := executor.HedgedSolve(ctx, o.Solver, o.Limiter, applyPrompt, map[string]any{"mode": "cohesion_apply"}, cohesionTimeout, o.hedgeDelay()); err == nil {
			revised = out
		}
	}
	return recs, revised
}

func joinRecs(recs []string) string {
	out := ""
	for i, r := range recs {
		if i > 0 {
			out += "\n"
		}
		out += "- " + r
	}
	return out
}

// resolveContradictions sends one dedicated resolution prompt per
// detected contradiction (snippets from both sides) and concatenates the
// replies into a single "Contradiction Resolution" section, one "###"
// subsection per contradiction, titled by its subject.
func (o *Orchestrator) resolveContradictions(ctx context.Context, conflicts []bbtypes.Contradiction, blackboard map[string]bbtypes.Artifact) string {
	if len(conflicts) == 0 {
		return ""
	}
	var subsections []string
	for _, c := range conflicts {
		sideA := snippetFor(blackboard, c.NodeA)
		sideB := snippetFor(blackboard, c.NodeB)
		prompt := fmt.Sprintf(contradictionResolutionPrompt, c.Subject, sideA, sideB)
		reply, _, err := executor.HedgedSolve(ctx, o.Solver, o.Limiter, prompt, map[string]any{"mode": "contradiction_resolution"}, 30*time.Second, o.hedgeDelay())
		if err != nil {
			continue
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			reply = fmt.Sprintf("%s and %s disagree on %q; no automated resolution was produced.", c.NodeA, c.NodeB, c.Subject)
		}
		subsections = append(subsections, "### "+titleCase(c.Subject)+"\n\n"+reply)
	}
	if len(subsections) == 0 {
		return ""
	}
	return "## Contradiction Resolution\n\n" + strings.Join(subsections, "\n\n")
}

func snippetFor(blackboard map[string]bbtypes.Artifact, node string) string {
	art, ok := blackboard[node]
	if !ok {
		return ""
	}
	body := art.Content
	if len(body) > 600 {
		body = body[:600]
	}
	return body
}
