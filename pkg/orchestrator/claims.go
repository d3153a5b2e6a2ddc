package orchestrator

import (
	"context"
	"fmt"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/memory"
)

// extractAndStoreClaims asks the planner LLM to mine (subject, predicate,
// object, polarity) claims out of a node's finished content and upserts
// them into the belief store under sig/node/runID. Any failure (LLM
// error, unparseable JSON) is swallowed — claim extraction is advisory
// and must never fail a run.
func extractAndStoreClaims(ctx context.Context, llm bbtypes.PlannerLLM, mem *memory.Store, sig, node, runID, content string) {
	prompt := fmt.Sprintf(claimsExtractPrompt, bbutil.SanitizeText(content))
	raw, err := llm.Complete(ctx, prompt, 0.0)
	if err != nil {
		return
	}
	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return
	}
	var data struct {
		Claims []bbtypes.Claim `json:"claims"`
	}
	if !bbutil.SafeJSONUnmarshal(obj, &data) || len(data.Claims) == 0 {
		return
	}
	mem.AddBeliefs(sig, node, runID, data.Claims)
}
