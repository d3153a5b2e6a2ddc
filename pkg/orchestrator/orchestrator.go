// Package orchestrator implements the end-to-end run algorithm: plan
// compilation, backbone/adjunct scheduling, contradiction detection and
// resolution, composition, the cohesion pass, and k-line persistence.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/config"
	"github.com/reasonline/engine/pkg/executor"
	"github.com/reasonline/engine/pkg/judge"
	"github.com/reasonline/engine/pkg/memory"
	"github.com/reasonline/engine/pkg/planner"
)

// Orchestrator wires together every component of one reasoning engine
// instance: the (possibly mock) backend, the judge registry, the
// persistent memory store, and the tunable configuration.
type Orchestrator struct {
	Solver     bbtypes.Solver
	PlannerLLM bbtypes.PlannerLLM
	Judges     *judge.Registry
	Memory     *memory.Store
	Cfg        *config.OrchestratorConfig
	Limiter    *bbutil.RateLimiter
	Log        *slog.Logger
	Hooks      executor.Hooks
}

// New builds an Orchestrator. The judge registry is the default
// three-judge set, plus an LLM judge backed by solver when
// cfg.EnableLLMJudge is set.
func New(solver bbtypes.Solver, plannerLLM bbtypes.PlannerLLM, mem *memory.Store, cfg *config.OrchestratorConfig, log *slog.Logger) *Orchestrator {
	registry := judge.DefaultRegistry()
	if cfg.EnableLLMJudge {
		registry.Register(&judge.LLMJudge{Solver: solver})
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		Solver:     solver,
		PlannerLLM: plannerLLM,
		Judges:     registry,
		Memory:     mem,
		Cfg:        cfg,
		Limiter:    bbutil.NewRateLimiter(cfg.GlobalMaxConcurrent, cfg.GlobalQPS, cfg.GlobalBurstWindow),
		Log:        log,
	}
}

// Result is the end-to-end outcome of one Run, matching the reference
// implementation's returned result dict field-for-field.
type Result struct {
	Classification        bbtypes.Classification      `json:"classification"`
	Plan                  bbtypes.Plan                `json:"plan"`
	Artifacts             map[string]bbtypes.Artifact `json:"artifacts"`
	Conflicts             []bbtypes.Contradiction     `json:"conflicts"`
	Resolution            string                      `json:"resolution"`
	FinalPreCohesion      string                      `json:"final_pre_cohesion"`
	Final                 string                      `json:"final"`
	GlobalRecommendations []string                    `json:"global_recommendations"`
	RunID                 string                      `json:"run_id"`
}

func (o *Orchestrator) hedgeDelay() time.Duration {
	snap := o.Cfg.Snapshot()
	if !snap.HedgeEnable {
		return 0
	}
	return snap.HedgeDelay()
}

// Run executes the full 13-step algorithm for one query. missionJSON and
// cqapJSON are optional pre-supplied mission/CQAP documents (e.g. from
// the adapter façade or a CLI flag); when cqapJSON is empty and
// cfg.UseLLMCQAP is enabled, one is obtained from the planner LLM.
func (o *Orchestrator) Run(ctx context.Context, query, missionJSON, cqapJSON string) (Result, error) {
	runID := uuid.New().String()[:8]
	o.Log.Info("orchestrator run starting", "run_id", runID, "query_len", len(query))
	bbutil.AuditEvent(o.Log, "orchestrator_start", "run_id", runID)

	// Step 2: optional CQAP meta analysis.
	if cqapJSON == "" && o.Cfg.UseCQAP && o.Cfg.UseLLMCQAP {
		if obj, ok := planner.ObtainCQAPMeta(ctx, o.PlannerLLM, query); ok {
			cqapJSON = obj
		}
	}

	// Step 3: classification.
	var cls bbtypes.Classification
	if o.Cfg.UseLLMClassifier {
		cls = planner.ClassifyQueryLLM(ctx, o.PlannerLLM, query)
	} else {
		cls = planner.ClassifyQuery(query)
	}
	o.Log.Info("query classified", "kind", cls.Kind, "score", cls.Score)

	// Step 4: signature.
	sig := computeSig(query, cls.Kind)

	// Step 5: neighbor retrieval + hint injection.
	hints := ""
	if o.Cfg.KLineEnable {
		neighbors := o.Memory.QueryKLines(query, o.Cfg.KLineTopK, o.Cfg.KLineMinSim, o.Cfg.KLineEmbedDim)
		hints = memory.SummarizeNeighbors(neighbors, o.Cfg.KLineHintTokens*4)
	}

	// Step 6: build the plan, with k-line replay / single-node degrade.
	plan := o.buildPlanWithFallback(ctx, query, cls, missionJSON, cqapJSON, hints, sig)
	o.Log.Info("plan built", "nodes", len(plan.Nodes))

	budget := executor.NewTokenBudget(o.Cfg.MaxTokensPerRun)
	nodeDeps := executor.NodeDeps{
		Solver:       o.Solver,
		Limiter:      o.Limiter,
		Judges:       o.Judges,
		Memory:       o.Memory,
		Query:        query,
		Cfg:          o.Cfg,
		RunBudget:    budget,
		NodeBudget:   o.Cfg.MaxTokensPerNode,
		JudgeTimeout: o.Cfg.JudgeTimeout,
	}

	var mu sync.Mutex
	var recentStatuses []bbtypes.Status
	var recentScores []float64
	recordCompletion := func(art bbtypes.Artifact) {
		mu.Lock()
		recentStatuses = append(recentStatuses, art.Status)
		for _, c := range art.Critiques {
			recentScores = append(recentScores, c.Score)
		}
		mu.Unlock()
	}
	hooks := executor.Hooks{
		OnNodeStart: o.Hooks.OnNodeStart,
		OnNodeComplete: func(art bbtypes.Artifact) {
			recordCompletion(art)
			if o.Hooks.OnNodeComplete != nil {
				o.Hooks.OnNodeComplete(art)
			}
		},
	}

	homeostatCtx, cancelHomeostat := context.WithCancel(ctx)
	go executor.RunHomeostat(homeostatCtx, o.Cfg, func() ([]bbtypes.Status, []float64) {
		mu.Lock()
		defer mu.Unlock()
		return append([]bbtypes.Status{}, recentStatuses...), append([]float64{}, recentScores...)
	})
	defer cancelHomeostat()

	// Step 7: backbone closure, then adjuncts; stability-check each pass.
	backboneNodes, adjunctNodes := partitionBackbone(plan.Nodes)
	tracker := &executor.StabilityTracker{}

	backboneBoard := executor.RunDAG(ctx, backboneNodes, nodeDeps, o.Cfg.GetConcurrent(), hooks, o.Log)
	tracker.Observe(passScores(backboneBoard))
	tracker.CheckAndTighten(o.Cfg, budget.Used(), o.Cfg.MaxTokensPerRun)

	adjunctBoard := executor.RunDAGWithSeed(ctx, adjunctNodes, backboneBoard, nodeDeps, o.Cfg.GetConcurrent(), hooks, o.Log)
	tracker.Observe(passScores(adjunctBoard))
	tracker.CheckAndTighten(o.Cfg, budget.Used(), o.Cfg.MaxTokensPerRun)

	blackboard := make(map[string]bbtypes.Artifact, len(backboneBoard)+len(adjunctBoard))
	for k, v := range backboneBoard {
		blackboard[k] = v
	}
	for k, v := range adjunctBoard {
		blackboard[k] = v
	}

	// Belief extraction per finished node.
	for _, n := range plan.Nodes {
		if art, ok := blackboard[n.Name]; ok {
			extractAndStoreClaims(ctx, o.PlannerLLM, o.Memory, sig, n.Name, runID, art.Content)
		}
	}
	if bconf := o.Memory.DetectBeliefConflicts(sig); len(bconf) > 0 {
		o.Memory.PenalizeKLine(sig)
	}

	// Steps 8-9: cross-artifact contradiction mining + resolution.
	conflicts := DetectContradictions(blackboard)
	resolution := o.resolveContradictions(ctx, conflicts, blackboard)

	// Step 10: composition.
	composed := Compose(plan, blackboard, resolution)

	// Step 11: cohesion pass.
	globalRecs, finalCohesive := o.cohesionPass(ctx, query, composed)

	// Self-model update: advisory, failures swallowed.
	o.updateSelfModel(ctx, sig, runID, cls, globalRecs)

	// Step 12: persist trace + upsert k-line.
	okNodes := make([]string, 0, len(blackboard))
	for name, art := range blackboard {
		if art.Status == bbtypes.StatusOK {
			okNodes = append(okNodes, name)
		}
	}
	shapes := kLineShapes(plan)
	trace := bbtypes.KLineTrace{Nodes: shapes}
	recCap := globalRecs
	if len(recCap) > 10 {
		recCap = recCap[:10]
	}
	o.Memory.UpsertKLine(sig, query, cls, func(e *bbtypes.KLineEntry) {
		e.Nodes = shapes
		e.OKNodes = okNodes
		e.GlobalRecs = recCap
		e.Traces = append(e.Traces, trace)
	}, o.Cfg.KLineEmbedDim, o.Cfg.KLineMaxEntries)

	o.Log.Info("orchestrator run completed", "run_id", runID)
	return Result{
		Classification:        cls,
		Plan:                  plan,
		Artifacts:             blackboard,
		Conflicts:             conflicts,
		Resolution:            resolution,
		FinalPreCohesion:      composed,
		Final:                 finalCohesive,
		GlobalRecommendations: globalRecs,
		RunID:                 runID,
	}, nil
}

// buildPlanWithFallback tries the three-tier compiler; on an error or an
// empty result it replays the best similar prior k-line (ok_nodes/nodes >=
// 0.8) if one exists, else degrades to a single-node answer plan.
func (o *Orchestrator) buildPlanWithFallback(ctx context.Context, query string, cls bbtypes.Classification, missionJSON, cqapJSON, hints, sig string) bbtypes.Plan {
	plan, err := planner.BuildPlan(ctx, o.PlannerLLM, query, cls, missionJSON, cqapJSON, hints)
	if err == nil && len(plan.Nodes) > 0 {
		return plan
	}

	if o.Cfg.KLineEnable {
		if replay, ok := o.replayBestNeighbor(query); ok {
			return replay
		}
	}

	return bbtypes.Plan{Nodes: planner.ValidateAndRepair([]bbtypes.Node{
		{
			Name:     "answer",
			Tmpl:     "GENERIC",
			Contract: planner.MkContract("Answer", 120),
			Role:     bbtypes.RoleBackbone,
		},
	})}
}

// replayBestNeighbor looks at the top similar k-line and, if its
// ok_nodes/nodes ratio meets the replay quality bar, rebuilds a plan
// from its latest trace via the store's own replay logic.
func (o *Orchestrator) replayBestNeighbor(query string) (bbtypes.Plan, bool) {
	candidates := o.Memory.QueryKLines(query, 1, o.Cfg.KLineMinSim, o.Cfg.KLineEmbedDim)
	if len(candidates) == 0 || candidates[0].Entry == nil {
		return bbtypes.Plan{}, false
	}
	entry := candidates[0].Entry
	if len(entry.Nodes) == 0 {
		return bbtypes.Plan{}, false
	}
	if float64(len(entry.OKNodes))/float64(len(entry.Nodes)) < 0.8 {
		return bbtypes.Plan{}, false
	}
	nodes := o.Memory.ReplayKLine(candidates[0].Sig)
	if len(nodes) == 0 {
		return bbtypes.Plan{}, false
	}
	return bbtypes.Plan{Nodes: planner.ValidateAndRepair(nodes)}, true
}

func kLineShapes(plan bbtypes.Plan) []bbtypes.KLineNodeShape {
	shapes := make([]bbtypes.KLineNodeShape, 0, len(plan.Nodes))
	for _, n := range plan.Nodes {
		shapes = append(shapes, bbtypes.KLineNodeShape{
			Name:           n.Name,
			Tmpl:           n.Tmpl,
			Role:           n.Role,
			Deps:           n.Deps,
			Section:        n.Contract.MarkdownSection(),
			Contract:       n.Contract,
			PromptOverride: n.PromptOverride,
		})
	}
	return shapes
}

// updateSelfModel asks the planner LLM to reflect on this run's
// observation summary (run id, classification, global recommendations)
// and persists whatever JSON object it returns as the sig's self
// model. Purely advisory: any failure is logged and otherwise ignored.
func (o *Orchestrator) updateSelfModel(ctx context.Context, sig, runID string, cls bbtypes.Classification, globalRecs []string) {
	obs := map[string]any{
		"run_id":         runID,
		"classification": cls,
		"global_recs":    globalRecs,
	}
	blob, err := sonic.MarshalString(obs)
	if err != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	raw, err := o.PlannerLLM.Complete(cctx, fmt.Sprintf(selfModelUpdatePrompt, blob), 0.0)
	if err != nil {
		o.Log.Warn("self model update failed", "error", err)
		return
	}
	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return
	}
	var model map[string]any
	if !bbutil.SafeJSONUnmarshal(obj, &model) || len(model) == 0 {
		return
	}
	o.Memory.StoreSelfModel(sig, model)
}

func passScores(board map[string]bbtypes.Artifact) []float64 {
	var scores []float64
	for _, art := range board {
		for _, c := range art.Critiques {
			scores = append(scores, c.Score)
		}
	}
	return scores
}

// partitionBackbone splits nodes into the backbone closure (every
// backbone-role node plus its transitive dependencies) and the
// remaining adjuncts, each preserving the plan's original order.
func partitionBackbone(nodes []bbtypes.Node) (backbone, adjuncts []bbtypes.Node) {
	byName := make(map[string]bbtypes.Node, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
	}

	closure := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		n, ok := byName[name]
		if !ok {
			return
		}
		closure[name] = true
		for _, d := range n.Deps {
			visit(d)
		}
	}
	for _, n := range nodes {
		if n.Role == bbtypes.RoleBackbone {
			visit(n.Name)
		}
	}

	for _, n := range nodes {
		if closure[n.Name] {
			backbone = append(backbone, n)
		} else {
			adjuncts = append(adjuncts, n)
		}
	}
	return backbone, adjuncts
}

var wsRe = regexp.MustCompile(`\s+`)

// computeSig mirrors the reference sig derivation: sha256(kind + ":" +
// normalized query)[0:16], where normalization lowercases, collapses
// whitespace, and truncates to 512 runes.
func computeSig(query string, kind bbtypes.Kind) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = wsRe.ReplaceAllString(q, " ")
	if r := []rune(q); len(r) > 512 {
		q = string(r[:512])
	}
	key := fmt.Sprintf("%s:%s", kind, q)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
