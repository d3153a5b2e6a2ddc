package planner

import (
	"context"
	"fmt"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// MakeFreeformPlan asks the planner LLM for a flat node list, slugifies
// names and the deps that refer to them, deduplicates names, sets an
// empty template to GENERIC (any other template name is kept as given),
// fills contract defaults, trims to the classification's size bound, and
// validates/repairs the result. A failed LLM call is returned as an
// ErrPlanning error; on any parse failure it synthesizes a single
// "answer" node.
func MakeFreeformPlan(ctx context.Context, llm bbtypes.PlannerLLM, query string, cls bbtypes.Classification, hints string) (bbtypes.Plan, error) {
	if llm == nil {
		return bbtypes.Plan{}, nil
	}
	raw, err := llm.Complete(ctx, fmt.Sprintf(freeformPlannerPrompt, query, hints), 0.0)
	if err != nil {
		return bbtypes.Plan{}, fmt.Errorf("%w: planner LLM call failed: %v", bbtypes.ErrPlanning, err)
	}

	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return fallbackAnswerPlan(), nil
	}
	var data struct {
		Nodes []rawNode `json:"nodes"`
	}
	if !bbutil.SafeJSONUnmarshal(obj, &data) || len(data.Nodes) == 0 {
		return fallbackAnswerPlan(), nil
	}

	seen := map[string]bool{}
	nodes := make([]bbtypes.Node, 0, len(data.Nodes))
	for i, nd := range data.Nodes {
		fallback := fmt.Sprintf("step-%d", i+1)
		name := bbutil.Slug(firstNonEmpty(nd.Name, fallback), fallback)
		if seen[name] {
			name = fmt.Sprintf("%s-%d", name, i+1)
		}
		seen[name] = true

		tmpl := nd.Tmpl
		if tmpl == "" {
			tmpl = "GENERIC"
		}
		role := bbtypes.RoleAdjunct
		if nd.Role == string(bbtypes.RoleBackbone) {
			role = bbtypes.RoleBackbone
		}
		var promptOverride *string
		if nd.Prompt != "" {
			p := nd.Prompt
			promptOverride = &p
		}
		var contract bbtypes.Contract
		if nd.Contract != nil {
			contract = parseContract(*nd.Contract, "Section")
		} else {
			contract = MkContract("Section", 50)
		}
		deps := make([]string, 0, len(nd.Deps))
		for _, d := range nd.Deps {
			deps = append(deps, bbutil.Slug(d, d))
		}
		nodes = append(nodes, bbtypes.Node{
			Name:           name,
			Tmpl:           tmpl,
			Deps:           deps,
			Contract:       contract,
			Role:           role,
			PromptOverride: promptOverride,
		})
	}

	nodes = trimBySize(nodes, cls.Kind)
	return bbtypes.Plan{Nodes: ValidateAndRepair(nodes)}, nil
}

type rawNode struct {
	Name     string       `json:"name"`
	Tmpl     string       `json:"tmpl"`
	Deps     []string     `json:"deps"`
	Role     string       `json:"role"`
	Prompt   string       `json:"prompt"`
	Contract *rawContract `json:"contract"`
}

func fallbackAnswerPlan() bbtypes.Plan {
	return bbtypes.Plan{Nodes: []bbtypes.Node{
		{Name: "answer", Tmpl: "GENERIC", Contract: MkContract("Answer", 120), Role: bbtypes.RoleBackbone},
	}}
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func trimBySize(nodes []bbtypes.Node, kind bbtypes.Kind) []bbtypes.Node {
	n := len(nodes)
	var limit int
	switch kind {
	case bbtypes.KindAtomic:
		limit = 1
	case bbtypes.KindHybrid:
		limit = clampInt(n, 2, 4)
	default:
		limit = clampInt(n, 4, 8)
	}
	if limit > n {
		limit = n
	}
	return nodes[:limit]
}

func clampInt(n, lo, hi int) int {
	v := n
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
