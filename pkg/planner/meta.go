package planner

import (
	"context"
	"fmt"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// ObtainCQAPMeta asks the planner LLM for a CQAP slot map: a bounded JSON
// phase that retries once with a repair instruction if the first reply
// doesn't parse as a flat string-keyed object. Returns ("", false) if
// both attempts fail.
func ObtainCQAPMeta(ctx context.Context, llm bbtypes.PlannerLLM, query string) (string, bool) {
	raw, err := llm.Complete(ctx, fmt.Sprintf(cqapMetaPrompt, query), 0.0)
	if err == nil {
		if obj, ok := validCQAPObject(raw); ok {
			return obj, true
		}
	}

	repair := fmt.Sprintf(cqapMetaPrompt, query) + "\n\nPrevious output was invalid JSON. Return ONLY the corrected JSON object."
	raw, err = llm.Complete(ctx, repair, 0.0)
	if err != nil {
		return "", false
	}
	return validCQAPObject(raw)
}

func validCQAPObject(raw string) (string, bool) {
	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return "", false
	}
	var m map[string]string
	if !bbutil.SafeJSONUnmarshal(obj, &m) {
		return "", false
	}
	return obj, true
}
