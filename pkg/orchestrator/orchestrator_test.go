package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/config"
	"github.com/reasonline/engine/pkg/memory"
)

// scriptedSolver returns fixed content per node name for the main
// draft/rewrite calls and a harmless plain reply for every advisory
// call (recommend, apply, cohesion, contradiction resolution), so
// tests can assert on composed output without depending on JSON the
// real backend would normally return.
type scriptedSolver struct {
	mu       sync.Mutex
	content  map[string]string
	failures map[string]int
}

func (s *scriptedSolver) Solve(ctx context.Context, task string, ctxMap map[string]any) (bbtypes.SolverResult, error) {
	mode, _ := ctxMap["mode"].(string)
	node, _ := ctxMap["node"].(string)
	if mode == "node" || mode == "improve_round" {
		s.mu.Lock()
		if n := s.failures[node]; n > 0 {
			s.failures[node] = n - 1
			s.mu.Unlock()
			return bbtypes.SolverResult{}, errors.New("scripted failure")
		}
		text := s.content[node]
		s.mu.Unlock()
		return bbtypes.SolverResult{Text: text}, nil
	}
	return bbtypes.SolverResult{Text: "ack"}, nil
}

// stubLLM returns planJSON whenever the prompt looks like a free-form
// planning request (the "SYSTEM: PLAN" marker) and an empty JSON object
// otherwise (classification, CQAP meta, and claim extraction calls all
// degrade harmlessly on "{}").
type stubLLM struct {
	planJSON string
	fail     bool
}

func (s *stubLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	if s.fail {
		return "", errors.New("planner unavailable")
	}
	if strings.Contains(prompt, "SYSTEM: PLAN") {
		return s.planJSON, nil
	}
	return "{}", nil
}

func testConfig(t *testing.T) *config.OrchestratorConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.UseLLMClassifier = false
	cfg.UseCQAP = false
	cfg.UseLLMCQAP = false
	cfg.HedgeEnable = false
	cfg.Concurrent = 4
	return cfg
}

func testOrchestrator(t *testing.T, solver bbtypes.Solver, llm bbtypes.PlannerLLM) (*Orchestrator, *memory.Store) {
	t.Helper()
	mem, err := memory.Open(filepath.Join(t.TempDir(), "memory.json"), nil)
	require.NoError(t, err)
	o := New(solver, llm, mem, testConfig(t), nil)
	return o, mem
}

func TestAtomicEcho(t *testing.T) {
	planJSON := `{"nodes":[{"name":"answer","tmpl":"GENERIC","deps":[],"role":"backbone",
		"contract":{"format":{"markdown_section":"Answer"},"tests":[{"kind":"nonempty"},{"kind":"header_present","arg":"Answer"}]}}]}`
	solver := &scriptedSolver{content: map[string]string{"answer": "## Answer\n\nWhat is 2+2?\n"}}
	o, _ := testOrchestrator(t, solver, &stubLLM{planJSON: planJSON})

	result, err := o.Run(context.Background(), "What is 2+2?", "", "")
	require.NoError(t, err)

	assert.Equal(t, bbtypes.KindAtomic, result.Classification.Kind)
	assert.Contains(t, result.Final, "## Answer")
	assert.Contains(t, result.Final, "What is 2+2?")
	assert.Equal(t, bbtypes.StatusOK, result.Artifacts["answer"].Status)
}

func TestHybridPlanWithDeps(t *testing.T) {
	planJSON := `{"nodes":[
		{"name":"analysis","tmpl":"GENERIC","deps":[],"role":"backbone",
			"contract":{"format":{"markdown_section":"Analysis"},"tests":[{"kind":"nonempty"},{"kind":"header_present","arg":"Analysis"},{"kind":"word_count_min","arg":"80"}]}},
		{"name":"answer","tmpl":"GENERIC","deps":["analysis"],"role":"backbone",
			"contract":{"format":{"markdown_section":"Final Answer"},"tests":[{"kind":"nonempty"},{"kind":"header_present","arg":"Final Answer"},{"kind":"contains","arg":"analysis"}]}},
		{"name":"examples","tmpl":"GENERIC","deps":["answer"],"role":"adjunct",
			"contract":{"format":{"markdown_section":"Examples"},"tests":[{"kind":"nonempty"},{"kind":"header_present","arg":"Examples"}]}}
	]}`

	longBody := strings.Repeat("word ", 90)
	solver := &scriptedSolver{content: map[string]string{
		"analysis": "## Analysis\n\n" + longBody + "\n",
		"answer":   "## Final Answer\n\nBuilt on the prior analysis, here is the answer.\n",
		"examples": "## Examples\n\nExample one. Example two.\n",
	}}
	o, _ := testOrchestrator(t, solver, &stubLLM{planJSON: planJSON})

	result, err := o.Run(context.Background(), "Design and compare two architectures, then roll out.", "", "")
	require.NoError(t, err)

	final := result.Final
	iAnalysis := strings.Index(final, "## Analysis")
	iAnswer := strings.Index(final, "## Final Answer")
	iExamples := strings.Index(final, "## Examples")
	require.True(t, iAnalysis >= 0 && iAnswer >= 0 && iExamples >= 0)
	assert.True(t, iAnalysis < iAnswer && iAnswer < iExamples)
	assert.Contains(t, final, "---")
	assert.True(t, strings.Contains(strings.ToLower(final), "analysis"))
}

func TestCycleRepair(t *testing.T) {
	planJSON := `{"nodes":[
		{"name":"a","tmpl":"GENERIC","deps":["b"],"role":"backbone","contract":{"format":{"markdown_section":"A"},"tests":[{"kind":"nonempty"}]}},
		{"name":"b","tmpl":"GENERIC","deps":["a"],"role":"backbone","contract":{"format":{"markdown_section":"B"},"tests":[{"kind":"nonempty"}]}}
	]}`
	solver := &scriptedSolver{content: map[string]string{
		"a": "## A\n\ncontent a\n",
		"b": "## B\n\ncontent b\n",
	}}
	o, _ := testOrchestrator(t, solver, &stubLLM{planJSON: planJSON})

	result, err := o.Run(context.Background(), "mutually dependent nodes", "", "")
	require.NoError(t, err)

	assert.Equal(t, bbtypes.StatusOK, result.Artifacts["a"].Status)
	assert.Equal(t, bbtypes.StatusOK, result.Artifacts["b"].Status)
}

func TestNodeFailureBypass(t *testing.T) {
	planJSON := `{"nodes":[
		{"name":"x","tmpl":"GENERIC","deps":[],"role":"backbone","contract":{"format":{"markdown_section":"X"},"tests":[{"kind":"nonempty"}]}},
		{"name":"y","tmpl":"GENERIC","deps":["x"],"role":"backbone","contract":{"format":{"markdown_section":"Y"},"tests":[{"kind":"nonempty"}]}},
		{"name":"z","tmpl":"GENERIC","deps":["y"],"role":"backbone","contract":{"format":{"markdown_section":"Z"},"tests":[{"kind":"nonempty"}]}}
	]}`
	solver := &scriptedSolver{
		content:  map[string]string{"x": "## X\n\ncontent x\n", "z": "## Z\n\ncontent z\n"},
		failures: map[string]int{"y": 2},
	}
	o, _ := testOrchestrator(t, solver, &stubLLM{planJSON: planJSON})

	result, err := o.Run(context.Background(), "chain x then y then z", "", "")
	require.NoError(t, err)

	assert.Equal(t, bbtypes.StatusBypassed, result.Artifacts["y"].Status)
	assert.Equal(t, bbtypes.StatusOK, result.Artifacts["z"].Status)
	assert.NotEmpty(t, result.Artifacts["z"].Content)
}

func TestKLineReplay(t *testing.T) {
	planJSON := `{"nodes":[
		{"name":"n1","tmpl":"GENERIC","deps":[],"role":"backbone","contract":{"format":{"markdown_section":"N1"},"tests":[{"kind":"nonempty"}]}},
		{"name":"n2","tmpl":"GENERIC","deps":["n1"],"role":"backbone","contract":{"format":{"markdown_section":"N2"},"tests":[{"kind":"nonempty"}]}},
		{"name":"n3","tmpl":"GENERIC","deps":["n2"],"role":"backbone","contract":{"format":{"markdown_section":"N3"},"tests":[{"kind":"nonempty"}]}},
		{"name":"n4","tmpl":"GENERIC","deps":["n3"],"role":"adjunct","contract":{"format":{"markdown_section":"N4"},"tests":[{"kind":"nonempty"}]}},
		{"name":"n5","tmpl":"GENERIC","deps":["n4"],"role":"adjunct","contract":{"format":{"markdown_section":"N5"},"tests":[{"kind":"nonempty"}]}}
	]}`
	solver := &scriptedSolver{content: map[string]string{
		"n1": "## N1\n\ncontent\n", "n2": "## N2\n\ncontent\n", "n3": "## N3\n\ncontent\n",
		"n4": "## N4\n\ncontent\n", "n5": "## N5\n\ncontent\n",
	}}
	query := "Design a five-step composite plan, then benchmark each stage after the previous phase."
	cfg := testConfig(t)
	mem, err := memory.Open(filepath.Join(t.TempDir(), "memory.json"), nil)
	require.NoError(t, err)

	o := New(solver, &stubLLM{planJSON: planJSON}, mem, cfg, nil)
	first, err := o.Run(context.Background(), query, "", "")
	require.NoError(t, err)
	require.Len(t, first.Plan.Nodes, 5)

	o2 := New(solver, &stubLLM{fail: true}, mem, cfg, nil)
	second, err := o2.Run(context.Background(), query, "", "")
	require.NoError(t, err)

	assert.Len(t, second.Plan.Nodes, 5)
	var names []string
	for _, n := range second.Plan.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"n1", "n2", "n3", "n4", "n5"}, names)
}

func TestContradictionAndResolution(t *testing.T) {
	planJSON := `{"nodes":[
		{"name":"a","tmpl":"GENERIC","deps":[],"role":"backbone","contract":{"format":{"markdown_section":"A"},"tests":[{"kind":"nonempty"}]}},
		{"name":"b","tmpl":"GENERIC","deps":[],"role":"backbone","contract":{"format":{"markdown_section":"B"},"tests":[{"kind":"nonempty"}]}}
	]}`
	solver := &scriptedSolver{content: map[string]string{
		"a": "## A\n\nThe system is distributed.\n",
		"b": "## B\n\nThe system is not distributed.\n",
	}}
	o, _ := testOrchestrator(t, solver, &stubLLM{planJSON: planJSON})

	result, err := o.Run(context.Background(), "Design and compare the system, then describe it.", "", "")
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "system", result.Conflicts[0].Subject)
	assert.Contains(t, result.Resolution, "## Contradiction Resolution")
	assert.Contains(t, result.Resolution, "### System")
}
