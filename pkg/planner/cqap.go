package planner

import (
	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// CQAPSlots is the normalized Cognitive Query Analysis Protocol slot
// map. Each field holds the (possibly empty) text content the planner
// LLM produced for that named reasoning slot.
type CQAPSlots struct {
	Goal         string
	Obstacles    string
	Facts        string
	Precision    string
	ToneAnalysis string

	Insights                 string
	StructuralRelationships  string
	BoundaryAnalysis         string
	EmbeddedAssumptions      string
	KnowledgeGaps            string
	FactReflectionSeparation string

	Uncertainty      string
	ResponseStrategy string
	Rationale        string
}

var cqapTier2Order = []struct {
	key string
	get func(CQAPSlots) string
}{
	{"insights", func(s CQAPSlots) string { return s.Insights }},
	{"structuralrelationships", func(s CQAPSlots) string { return s.StructuralRelationships }},
	{"boundaryanalysis", func(s CQAPSlots) string { return s.BoundaryAnalysis }},
	{"embeddedassumptions", func(s CQAPSlots) string { return s.EmbeddedAssumptions }},
	{"knowledgegaps", func(s CQAPSlots) string { return s.KnowledgeGaps }},
	{"factreflectionseparation", func(s CQAPSlots) string { return s.FactReflectionSeparation }},
}

// ParseCQAP tolerantly decodes a raw CQAP JSON object into CQAPSlots.
// Unknown keys are ignored; missing keys default to empty strings,
// which CompileCQAP treats as "slot absent" for every slot except goal,
// obstacles and facts, whose nodes it always emits.
func ParseCQAP(obj string) (CQAPSlots, bool) {
	var raw map[string]string
	if !bbutil.SafeJSONUnmarshal(obj, &raw) {
		return CQAPSlots{}, false
	}
	get := func(k string) string { return raw[k] }
	return CQAPSlots{
		Goal:                     get("goal"),
		Obstacles:                get("obstacles"),
		Facts:                    get("facts"),
		Precision:                get("precision"),
		ToneAnalysis:             get("toneanalysis"),
		Insights:                 get("insights"),
		StructuralRelationships:  get("structuralrelationships"),
		BoundaryAnalysis:         get("boundaryanalysis"),
		EmbeddedAssumptions:      get("embeddedassumptions"),
		KnowledgeGaps:            get("knowledgegaps"),
		FactReflectionSeparation: get("factreflectionseparation"),
		Uncertainty:              get("uncertainty"),
		ResponseStrategy:         get("responsestrategy"),
		Rationale:                get("rationale"),
	}, true
}

// CompileCQAP builds a Plan from normalized CQAP slots: Tier-1
// (goal→obstacles→facts, plus precision/toneanalysis when present) is
// always emitted; Tier-2 threads in linearly for Hybrid and Composite;
// Tier-3 (uncertainty, responsestrategy, rationale) depends on facts
// plus the last Tier-2 node and is emitted for Composite only. A final
// backbone "finalanswer" node depends on every prior node.
func CompileCQAP(slots CQAPSlots, kind bbtypes.Kind) bbtypes.Plan {
	var nodes []bbtypes.Node
	var all []string

	add := func(name, section string, deps []string, role bbtypes.Role, minWords int) {
		nodes = append(nodes, bbtypes.Node{
			Name:     name,
			Tmpl:     "CQAP_SLOT",
			Deps:     deps,
			Contract: MkContract(section, minWords),
			Role:     role,
		})
		all = append(all, name)
	}

	add("goal", "Goal", nil, bbtypes.RoleBackbone, 30)
	add("obstacles", "Obstacles", []string{"goal"}, bbtypes.RoleBackbone, 30)
	add("facts", "Facts", []string{"obstacles"}, bbtypes.RoleBackbone, 40)

	if slots.Precision != "" {
		add("precision", "Precision", []string{"facts"}, bbtypes.RoleAdjunct, 0)
	}
	if slots.ToneAnalysis != "" {
		add("toneanalysis", "Tone Analysis", []string{"facts"}, bbtypes.RoleAdjunct, 0)
	}

	lastTier2 := "facts"
	if kind != bbtypes.KindAtomic {
		prev := "facts"
		for _, t := range cqapTier2Order {
			if t.get(slots) == "" {
				continue
			}
			add(t.key, tier2Title(t.key), []string{prev}, bbtypes.RoleAdjunct, 0)
			prev = t.key
		}
		lastTier2 = prev
	}

	if kind == bbtypes.KindComposite {
		tier3 := []struct{ key, title, val string }{
			{"uncertainty", "Uncertainty", slots.Uncertainty},
			{"responsestrategy", "Response Strategy", slots.ResponseStrategy},
			{"rationale", "Rationale", slots.Rationale},
		}
		for _, t := range tier3 {
			if t.val == "" {
				continue
			}
			deps := []string{"facts"}
			if lastTier2 != "facts" {
				deps = append(deps, lastTier2)
			}
			add(t.key, t.title, deps, bbtypes.RoleAdjunct, 0)
		}
	}

	if len(nodes) == 0 {
		return bbtypes.Plan{}
	}

	nodes = append(nodes, bbtypes.Node{
		Name:     "finalanswer",
		Tmpl:     "CQAP_FINAL",
		Deps:     append([]string{}, all...),
		Contract: MkContract("Final Answer", 120),
		Role:     bbtypes.RoleBackbone,
	})

	return bbtypes.Plan{Nodes: ValidateAndRepair(nodes)}
}

func tier2Title(key string) string {
	titles := map[string]string{
		"insights":                 "Insights",
		"structuralrelationships":  "Structural Relationships",
		"boundaryanalysis":         "Boundary Analysis",
		"embeddedassumptions":      "Embedded Assumptions",
		"knowledgegaps":            "Knowledge Gaps",
		"factreflectionseparation": "Fact/Reflection Separation",
	}
	if t, ok := titles[key]; ok {
		return t
	}
	return key
}
