package executor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/config"
	"github.com/reasonline/engine/pkg/judge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type echoSolver struct {
	calls int
}

func (e *echoSolver) Solve(ctx context.Context, task string, ctxMap map[string]any) (bbtypes.SolverResult, error) {
	e.calls++
	text := "## Section\n\nSome generated content that is reasonably long for tests to pass QA checks without issue at all.\n"
	n := len(text) / 4
	return bbtypes.SolverResult{Text: text, TotalTokens: &n}, nil
}

type failingSolver struct{}

func (failingSolver) Solve(ctx context.Context, task string, ctxMap map[string]any) (bbtypes.SolverResult, error) {
	return bbtypes.SolverResult{}, errors.New("boom")
}

func newDeps(solver bbtypes.Solver) NodeDeps {
	cfg := config.Defaults()
	cfg.HedgeEnable = false
	cfg.MaxRounds = 2
	return NodeDeps{
		Solver:       solver,
		Limiter:      bbutil.NewRateLimiter(8, 50, 500*time.Millisecond),
		Judges:       judge.DefaultRegistry(),
		Query:        "test query",
		Cfg:          cfg,
		RunBudget:    NewTokenBudget(100000),
		NodeBudget:   100,
		JudgeTimeout: 2 * time.Second,
	}
}

func TestCoerceTextUnwrapsSolverRepr(t *testing.T) {
	res := bbtypes.SolverResult{Text: "SolverResult(text='hello world', total_tokens=3)"}
	assert.Equal(t, "hello world", CoerceText(res))
}

func TestHedgedSolveWithoutHedging(t *testing.T) {
	solver := &echoSolver{}
	limiter := bbutil.NewRateLimiter(4, 50, 500*time.Millisecond)
	text, tokens, err := HedgedSolve(context.Background(), solver, limiter, "task", nil, time.Second, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Section")
	assert.Greater(t, tokens, 0)
}

func TestTokenBudgetReserveExhausts(t *testing.T) {
	b := NewTokenBudget(10)
	require.NoError(t, b.Reserve(6))
	require.NoError(t, b.Reserve(4))
	assert.ErrorIs(t, b.Reserve(1), ErrBudgetExhausted)
}

func TestBuildContextAndDepsBullets(t *testing.T) {
	node := bbtypes.Node{Name: "child", Deps: []string{"parent"}}
	board := map[string]bbtypes.Artifact{
		"parent": {Node: "parent", Content: "Parent content body describing something useful."},
	}
	ctxTxt := BuildContext(node, board, 500)
	assert.Contains(t, ctxTxt, "### parent")
	bullets := DepsBullets(ctxTxt, node, board)
	assert.Contains(t, bullets, "- parent:")
}

func TestRunImprovementLoopProducesOKArtifact(t *testing.T) {
	node := bbtypes.Node{
		Name:     "answer",
		Tmpl:     "GENERIC",
		Contract: bbtypes.Contract{Format: map[string]string{"markdown_section": "Section"}, Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}},
		Role:     bbtypes.RoleBackbone,
	}
	deps := newDeps(&echoSolver{})
	art, err := RunImprovementLoop(context.Background(), node, map[string]bbtypes.Artifact{}, deps)
	require.NoError(t, err)
	assert.Equal(t, bbtypes.StatusOK, art.Status)
	assert.NotEmpty(t, art.Content)
}

func TestRunImprovementLoopDraftFailurePropagates(t *testing.T) {
	node := bbtypes.Node{Name: "answer", Tmpl: "GENERIC", Contract: bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}}}
	deps := newDeps(failingSolver{})
	_, err := RunImprovementLoop(context.Background(), node, map[string]bbtypes.Artifact{}, deps)
	assert.Error(t, err)
}

func TestRunDAGBypassesFailingNodeAndSplicesDeps(t *testing.T) {
	nodes := []bbtypes.Node{
		{Name: "a", Contract: bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}}},
		{Name: "b", Deps: []string{"a"}, Contract: bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}}},
	}
	deps := newDeps(failingSolver{})
	board := RunDAG(context.Background(), nodes, deps, 4, Hooks{}, testLogger())
	require.Contains(t, board, "a")
	require.Contains(t, board, "b")
	assert.Equal(t, bbtypes.StatusBypassed, board["a"].Status)
	assert.Equal(t, bbtypes.StatusBypassed, board["b"].Status)
}

func TestRunDAGRunsDependentAfterParent(t *testing.T) {
	nodes := []bbtypes.Node{
		{Name: "a", Contract: bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}}},
		{Name: "b", Deps: []string{"a"}, Contract: bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestNonempty}}}},
	}
	deps := newDeps(&echoSolver{})
	board := RunDAG(context.Background(), nodes, deps, 4, Hooks{}, testLogger())
	require.Contains(t, board, "a")
	require.Contains(t, board, "b")
	assert.Equal(t, bbtypes.StatusOK, board["a"].Status)
	assert.Equal(t, bbtypes.StatusOK, board["b"].Status)
}

func TestStabilityTrackerTightensOnNonDecreasingEnergy(t *testing.T) {
	cfg := config.Defaults()
	tracker := &StabilityTracker{}
	tracker.Observe([]float64{0.9, 0.9, 0.9})
	e1 := tracker.CheckAndTighten(cfg, 1000, 20000)
	startConcurrent := cfg.GetConcurrent()

	tracker.Observe([]float64{0.1, 0.1, 0.1})
	e2 := tracker.CheckAndTighten(cfg, 15000, 20000)
	assert.Greater(t, e2, e1)
	assert.Less(t, cfg.GetConcurrent(), startConcurrent)
}

func TestHomeostatIncreasesMaxRoundsOnFailures(t *testing.T) {
	cfg := config.Defaults()
	cfg.MaxRounds = 2
	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	statuses := []bbtypes.Status{bbtypes.StatusFailed, bbtypes.StatusFailed, bbtypes.StatusFailed, bbtypes.StatusOK, bbtypes.StatusOK}
	RunHomeostat(ctx, cfg, func() ([]bbtypes.Status, []float64) { return statuses, nil })
	assert.Greater(t, cfg.GetMaxRounds(), 2)
}
