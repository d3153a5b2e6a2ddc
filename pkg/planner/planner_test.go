package planner

import (
	"context"
	"testing"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyQueryThresholds(t *testing.T) {
	atomic := ClassifyQuery("what is the capital of France")
	assert.Equal(t, bbtypes.KindAtomic, atomic.Kind)

	composite := ClassifyQuery(`Design a protocol roadmap comparing trade-offs, then evaluate architecture benchmarks.
		- first stage depends on a prior phase
		- second stage must follow an earlier blocker
		1. implement
		2. evaluate
		after that, benchmark the implementation, compare trade-offs, and evaluate architecture once more.`)
	assert.Equal(t, bbtypes.KindComposite, composite.Kind)
}

type stubPlannerLLM struct {
	response string
	err      error
}

func (s *stubPlannerLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return s.response, s.err
}

func TestMakeFreeformPlanParsesNodes(t *testing.T) {
	llm := &stubPlannerLLM{response: `{"nodes":[{"name":"Intro","tmpl":"GENERIC","role":"backbone"},{"name":"Details","deps":["Intro"]}]}`}
	plan, err := MakeFreeformPlan(context.Background(), llm, "query", bbtypes.Classification{Kind: bbtypes.KindHybrid}, "")
	require.NoError(t, err)
	require.Len(t, plan.Nodes, 2)
	assert.Equal(t, "intro", plan.Nodes[0].Name)
	assert.Equal(t, []string{"intro"}, plan.Nodes[1].Deps)
}

func TestMakeFreeformPlanFallsBackOnParseFailure(t *testing.T) {
	llm := &stubPlannerLLM{response: "not json at all"}
	plan, err := MakeFreeformPlan(context.Background(), llm, "query", bbtypes.Classification{Kind: bbtypes.KindAtomic}, "")
	require.NoError(t, err)
	require.Len(t, plan.Nodes, 1)
	assert.Equal(t, "answer", plan.Nodes[0].Name)
}

func TestValidateAndRepairDropsForwardDepsAndCycles(t *testing.T) {
	nodes := []bbtypes.Node{
		{Name: "a", Deps: []string{"b"}},
		{Name: "b", Deps: []string{"a"}},
	}
	repaired := ValidateAndRepair(nodes)
	assert.Empty(t, repaired[0].Deps)
	assert.Empty(t, repaired[1].Deps)
}

func TestCompileMissionBuildsBackboneChain(t *testing.T) {
	missionJSON := `{"query_context":"ctx","Strategy":[{"Objective":"Explore options","queries":{"Q1":"what"},
		"tactics":[{"t1":"gather data","dependencies":[],"expected_artifact":"data.md"},
		           {"t2":"synthesize","dependencies":["data.md"],"expected_artifact":"synth.md"}]}]}`
	m, ok := ParseMission(missionJSON)
	require.True(t, ok)
	require.Len(t, m.Strategy, 1)

	plan := CompileMission(m)
	names := map[string]bbtypes.Node{}
	for _, n := range plan.Nodes {
		names[n.Name] = n
	}
	require.Contains(t, names, "o1_objective")
	require.Contains(t, names, "final_synthesis")
	assert.Contains(t, names["final_synthesis"].Deps, "o1_objective")
	assert.Contains(t, names["o1_objective"].Deps, "o1_queries")
	assert.Contains(t, names["o1_t2"].Deps, "o1_t1")
}

func TestCompileCQAPTiersByKind(t *testing.T) {
	slots := CQAPSlots{
		Goal: "g", Obstacles: "o", Facts: "f",
		Insights: "i", Uncertainty: "u", ResponseStrategy: "r", Rationale: "rr",
	}
	atomicPlan := CompileCQAP(slots, bbtypes.KindAtomic)
	hasKey := func(p bbtypes.Plan, name string) bool {
		for _, n := range p.Nodes {
			if n.Name == name {
				return true
			}
		}
		return false
	}
	assert.True(t, hasKey(atomicPlan, "goal"))
	assert.False(t, hasKey(atomicPlan, "insights"))
	assert.False(t, hasKey(atomicPlan, "uncertainty"))

	compositePlan := CompileCQAP(slots, bbtypes.KindComposite)
	assert.True(t, hasKey(compositePlan, "insights"))
	assert.True(t, hasKey(compositePlan, "uncertainty"))
	assert.True(t, hasKey(compositePlan, "finalanswer"))
}

func TestBuildPlanPrefersMissionOverFreeform(t *testing.T) {
	missionJSON := `{"Strategy":[{"Objective":"Only stage","tactics":[{"t1":"do it"}]}]}`
	llm := &stubPlannerLLM{response: `{"nodes":[{"name":"should-not-be-used"}]}`}
	plan, err := BuildPlan(context.Background(), llm, "q", bbtypes.Classification{Kind: bbtypes.KindHybrid}, missionJSON, "", "")
	require.NoError(t, err)
	found := false
	for _, n := range plan.Nodes {
		if n.Name == "o1_objective" {
			found = true
		}
	}
	assert.True(t, found)
}
