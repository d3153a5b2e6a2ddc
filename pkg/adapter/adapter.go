// Package adapter wraps an opaque orchestrator instance behind the
// Solver/PlannerLLM contracts, so a reasoning engine run can itself be
// plugged into another Solver-shaped caller as a single opaque call.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/orchestrator"
)

const (
	defaultTimeoutSec    = 120
	defaultPlannerGrace  = 5 * time.Second
	defaultPlannerWindow = 45 * time.Second
)

// Orchestrator is the subset of *orchestrator.Orchestrator the adapter
// depends on, so tests can substitute a stub.
type Orchestrator interface {
	Run(ctx context.Context, query, missionJSON, cqapJSON string) (orchestrator.Result, error)
}

// Adapter implements bbtypes.Solver by delegating to an Orchestrator,
// optionally embedding a mission plan obtained from Planner first.
type Adapter struct {
	Orch       Orchestrator
	Planner    *PlannerLLM
	TimeoutSec int
}

// New builds an Adapter with the reference 120s composed-timeout default.
func New(orch Orchestrator, planner *PlannerLLM) *Adapter {
	return &Adapter{Orch: orch, Planner: planner, TimeoutSec: defaultTimeoutSec}
}

// Solve runs task through the wrapped orchestrator and returns its
// cohesive final document as the solver's text. ctxMap may carry
// "plan_mode": "mission" (default) or any other value to skip mission
// embedding, matching the reference solver's context-driven toggle.
func (a *Adapter) Solve(ctx context.Context, task string, ctxMap map[string]any) (bbtypes.SolverResult, error) {
	if strings.TrimSpace(task) == "" {
		return bbtypes.SolverResult{}, errors.New("adapter: solve called with empty task")
	}

	wantMission := true
	if ctxMap != nil {
		if pm, ok := ctxMap["plan_mode"]; ok {
			wantMission = pm == "mission"
		}
	}

	enrichedTask := task
	if wantMission && a.Planner != nil {
		if mission, err := a.Planner.Plan(ctx, task, "mission"); err == nil {
			if blob, merr := sonic.MarshalString(mission); merr == nil {
				enrichedTask = EmbedMission(task, blob)
			}
		}
	}

	timeout := a.composedTimeout(ctxMap)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := a.Orch.Run(cctx, enrichedTask, "", "")
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return bbtypes.SolverResult{}, fmt.Errorf("adapter: pipeline timeout after %s: %w", timeout, err)
		}
		return bbtypes.SolverResult{}, fmt.Errorf("adapter: pipeline failure: %w", err)
	}

	final := strings.TrimSpace(result.Final)
	if final == "" {
		return bbtypes.SolverResult{}, errors.New("adapter: pipeline returned empty final")
	}
	total := bbutil.ApproxTokens(final)
	if total < 1 {
		total = 1
	}
	return bbtypes.SolverResult{Text: final, TotalTokens: &total}, nil
}

// composedTimeout returns the lesser of a caller-requested timeout_sec
// (in ctxMap) and the adapter's own configured ceiling, plus a grace
// period, mirroring the reference solver's asyncio.wait_for nesting.
func (a *Adapter) composedTimeout(ctxMap map[string]any) time.Duration {
	ceiling := time.Duration(a.TimeoutSec) * time.Second
	if ceiling <= 0 {
		ceiling = defaultTimeoutSec * time.Second
	}
	if ctxMap != nil {
		if v, ok := ctxMap["timeout_sec"].(float64); ok && v > 0 {
			if requested := time.Duration(v * float64(time.Second)); requested < ceiling {
				ceiling = requested
			}
		}
	}
	return ceiling + defaultPlannerGrace
}

// PlannerLLM wraps a raw planner-completion backend and produces
// triage+DAG JSON ("dag" mode) or a normalized mission plan ("mission"
// mode), tolerating malformed LLM output by degrading to the
// deterministic heuristic mission.
type PlannerLLM struct {
	LLM        bbtypes.PlannerLLM
	TimeoutSec int
}

// Complete proxies to the underlying LLM with a bounded timeout.
func (p *PlannerLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, p.timeout()+defaultPlannerGrace)
	defer cancel()
	return p.LLM.Complete(cctx, prompt, temperature)
}

func (p *PlannerLLM) timeout() time.Duration {
	if p.TimeoutSec > 0 {
		return time.Duration(p.TimeoutSec) * time.Second
	}
	return defaultPlannerWindow
}

const missionPlannerPrompt = "Produce a mission plan (Strategy of objectives, queries, tactics) for:"
const dagPlannerPrompt = "Produce a triage + DAG plan (triage, nodes, stitch.sections) for:"

// Plan asks the underlying LLM for a "dag" or "mission" shaped plan and
// normalizes the result; mode == "mission" degrades to
// HeuristicMissionFromQuery on any parse failure or missing Strategy.
func (p *PlannerLLM) Plan(ctx context.Context, query, mode string) (map[string]any, error) {
	header := dagPlannerPrompt
	if mode == "mission" {
		header = missionPlannerPrompt
	}
	raw, err := p.Complete(ctx, header+"\n\nQUERY:\n"+query, 0.0)
	if err != nil {
		if mode == "mission" {
			return HeuristicMissionFromQuery(query), nil
		}
		return nil, err
	}

	obj, ok := bbutil.FirstJSONObject(raw)
	var parsed map[string]any
	if ok {
		bbutil.SafeJSONUnmarshal(obj, &parsed)
	}

	if mode == "mission" {
		return NormalizeMission(parsed, query), nil
	}
	return normalizeDag(parsed), nil
}

func normalizeDag(obj map[string]any) map[string]any {
	triage, _ := obj["triage"].(string)
	triage = strings.ToLower(strings.TrimSpace(triage))
	if triage != "atomic" && triage != "composite" && triage != "hybrid" {
		triage = "atomic"
	}

	var nodes []any
	if triage != "atomic" {
		if raw, ok := obj["nodes"].([]any); ok {
			seen := map[string]bool{}
			for _, nv := range raw {
				n, ok := nv.(map[string]any)
				if !ok {
					continue
				}
				id := strings.ToLower(strings.TrimSpace(fmt.Sprint(n["id"])))
				text := strings.TrimSpace(fmt.Sprint(n["text"]))
				if id == "" || id == "<nil>" || text == "" || text == "<nil>" {
					continue
				}
				if seen[id] {
					continue
				}
				seen[id] = true
				deps := asStringList(n["deps"])
				nodes = append(nodes, map[string]any{"id": id, "text": text, "deps": deps})
			}
		}
		if len(nodes) == 0 {
			nodes = []any{map[string]any{"id": "main", "text": "Produce a complete answer to the query.", "deps": []string{}}}
		}
	}

	var sections []any
	if stitch, ok := obj["stitch"].(map[string]any); ok {
		if raw, ok := stitch["sections"].([]any); ok {
			for _, sv := range raw {
				s, ok := sv.(map[string]any)
				if !ok {
					continue
				}
				title := strings.TrimSpace(fmt.Sprint(s["title"]))
				if title == "" || title == "<nil>" {
					title = "Answer"
				}
				sections = append(sections, map[string]any{
					"title":        title,
					"requires":     asStringList(s["requires"]),
					"must_contain": asStringList(s["must_contain"]),
				})
			}
		}
	}
	if len(sections) == 0 {
		sections = []any{map[string]any{"title": "Answer", "requires": []string{}, "must_contain": []string{}}}
	}

	return map[string]any{"triage": triage, "nodes": nodes, "stitch": map[string]any{"sections": sections}}
}
