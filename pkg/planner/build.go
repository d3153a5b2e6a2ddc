package planner

import (
	"context"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// BuildPlan tries the three plan compilers in priority order — mission
// JSON, then CQAP slots, then the free-form LLM planner — and returns
// the first one that yields a non-empty plan.
func BuildPlan(ctx context.Context, llm bbtypes.PlannerLLM, query string, cls bbtypes.Classification, missionObj, cqapObj, hints string) (bbtypes.Plan, error) {
	if missionObj != "" {
		if m, ok := ParseMission(missionObj); ok {
			if plan := CompileMission(m); len(plan.Nodes) > 0 {
				return plan, nil
			}
		}
	}
	if cqapObj != "" {
		if slots, ok := ParseCQAP(cqapObj); ok {
			if plan := CompileCQAP(slots, cls.Kind); len(plan.Nodes) > 0 {
				return plan, nil
			}
		}
	}
	return MakeFreeformPlan(ctx, llm, query, cls, hints)
}
