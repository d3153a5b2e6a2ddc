package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/reasonline/engine/pkg/config"
	"github.com/reasonline/engine/pkg/judge"
	"github.com/reasonline/engine/pkg/memory"
)

// loopState is one state of the per-node improvement-loop state machine.
type loopState string

const (
	stateDraft        loopState = "DRAFT"
	stateReview       loopState = "REVIEW"
	statePatch        loopState = "PATCH"
	stateRewrite      loopState = "REWRITE"
	stateDone         loopState = "DONE"
	stateShortCircuit loopState = "SHORT_CIRCUIT"
)

// NodeDeps bundles the collaborators a node run needs, threaded through
// from the scheduler so individual node goroutines stay stateless.
type NodeDeps struct {
	Solver       bbtypes.Solver
	Limiter      *bbutil.RateLimiter
	Judges       *judge.Registry
	Memory       *memory.Store // judge weight feedback; nil disables bumping
	Query        string
	Cfg          *config.OrchestratorConfig
	RunBudget    *TokenBudget
	NodeBudget   int // per-node cap, independent of RunBudget
	JudgeTimeout time.Duration
}

// RunImprovementLoop drives a single node through DRAFT -> REVIEW ->
// (PATCH|REWRITE)* -> (DONE|SHORT_CIRCUIT), then runs the recommend
// step. Critiques are computed once on the terminal content for
// telemetry only; they never gate acceptance. A solver failure during
// the initial DRAFT solve is returned as an error so the scheduler can
// retry or bypass the node; a failure during a REWRITE instead
// short-circuits with whatever content the loop already produced.
func RunImprovementLoop(ctx context.Context, node bbtypes.Node, blackboard map[string]bbtypes.Artifact, deps NodeDeps) (bbtypes.Artifact, error) {
	state := stateDraft
	var content string
	var qa bbtypes.QAResult
	var unresolved []bbtypes.Issue
	rounds := 0
	nodeUsed := 0
	maxRounds := deps.Cfg.GetMaxRounds()

	prompt := AssembleNodePrompt(node, blackboard, deps.Query, minInt(1000, deps.Cfg.KLineHintTokens), deps.Cfg.MaxTokensPerNode)

	for {
		switch state {
		case stateDraft:
			text, err := solveWithinBudget(ctx, deps, node.Name, "node", prompt, deps.Cfg.NodeTimeout, &nodeUsed)
			if err != nil {
				return bbtypes.Artifact{}, err
			}
			content = text
			qa = bbutil.RunTests(content, node.Contract)
			state = stateReview

		case stateReview:
			rounds++
			if qa.OK {
				state = stateDone
				break
			}
			if deps.RunBudget.Remaining() <= 0 || rounds > maxRounds {
				state = stateShortCircuit
				break
			}
			unresolved = qa.Issues
			if anyHasPatch(unresolved) {
				state = statePatch
			} else {
				state = stateRewrite
			}

		case statePatch:
			var patches []bbtypes.Patch
			for _, issue := range unresolved {
				patches = append(patches, issue.Suggested...)
			}
			content = bbutil.ApplyPatches(content, patches, nil)
			qa = bbutil.RunTests(content, node.Contract)
			state = stateReview

		case stateRewrite:
			guidance := guidanceBlock(unresolved)
			rewritePrompt := prompt + "\n\nIterative Constraints:\n" + guidance
			text, err := solveWithinBudget(ctx, deps, node.Name, "improve_round", rewritePrompt, deps.Cfg.NodeTimeout, &nodeUsed)
			if err != nil {
				state = stateShortCircuit
				break
			}
			content = text
			qa = bbutil.RunTests(content, node.Contract)
			state = stateReview

		case stateDone, stateShortCircuit:
			status := bbtypes.StatusOK
			if state == stateShortCircuit {
				status = bbtypes.StatusNeedsMoreDepth
			}
			critiques := runJudges(ctx, deps, content, node.Contract)
			finalContent, recs, finalQA, finalCritiques := recommendStep(ctx, deps, node, content, critiques)
			return bbtypes.Artifact{
				Node:            node.Name,
				Content:         finalContent,
				QA:              finalQA,
				Critiques:       finalCritiques,
				Status:          status,
				Recommendations: recs,
			}, nil
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func anyHasPatch(issues []bbtypes.Issue) bool {
	for _, i := range issues {
		if len(i.Suggested) > 0 {
			return true
		}
	}
	return false
}

func guidanceBlock(issues []bbtypes.Issue) string {
	var b strings.Builder
	for _, i := range issues {
		b.WriteString("- ")
		b.WriteString(i.Code)
		for k, v := range i.Details {
			fmt.Fprintf(&b, " (%s=%s)", k, v)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// solveWithinBudget reserves an up-front estimate (the prompt's own
// approximate token count, as a coarse pre-flight guard against a run
// that is already out of budget) then reconciles with the call's real
// cost once it returns: the backend-reported total_tokens when the
// solver set it, else a len/4 approximation of the reply text. That
// reconciled amount accumulates into both the per-run budget and
// nodeUsed, the caller's per-node counter, so MAX_TOKENS_PER_NODE acts
// as an accumulator across DRAFT and every REWRITE round rather than a
// single flat reservation.
func solveWithinBudget(ctx context.Context, deps NodeDeps, nodeName, mode, prompt string, timeout time.Duration, nodeUsed *int) (string, error) {
	if *nodeUsed >= deps.NodeBudget {
		return "", ErrBudgetExhausted
	}
	if err := deps.RunBudget.Reserve(bbutil.ApproxTokens(prompt)); err != nil {
		return "", err
	}
	text, tokens, err := HedgedSolve(ctx, deps.Solver, deps.Limiter, prompt, map[string]any{"mode": mode, "node": nodeName}, timeout, hedgeDelayOrZero(deps.Cfg))
	if err != nil {
		return "", err
	}
	deps.RunBudget.Add(tokens)
	*nodeUsed += tokens
	return text, nil
}

func hedgeDelayOrZero(cfg *config.OrchestratorConfig) time.Duration {
	snap := cfg.Snapshot()
	if !snap.HedgeEnable {
		return 0
	}
	return snap.HedgeDelay()
}

func runJudges(ctx context.Context, deps NodeDeps, content string, contract bbtypes.Contract) []bbtypes.Critique {
	if deps.Judges == nil {
		return nil
	}
	var out []bbtypes.Critique
	for _, j := range deps.Judges.All() {
		c := judge.RunWithTimeout(ctx, j, content, contract, deps.JudgeTimeout)
		out = append(out, c)
		if deps.Memory != nil {
			deps.Memory.BumpJudge(j.Name(), (c.Score-0.7)*0.12)
		}
	}
	return out
}

func recommendStep(ctx context.Context, deps NodeDeps, node bbtypes.Node, content string, critiques []bbtypes.Critique) (string, []string, bbtypes.QAResult, []bbtypes.Critique) {
	prompt := fmt.Sprintf(nodeRecommendPrompt, node.Contract.MarkdownSection(), content)
	raw, _, err := HedgedSolve(ctx, deps.Solver, deps.Limiter, prompt, map[string]any{"mode": "node_recommend", "node": node.Name}, 12*time.Second, 0)
	if err != nil {
		return content, nil, bbutil.RunTests(content, node.Contract), critiques
	}
	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return content, nil, bbutil.RunTests(content, node.Contract), critiques
	}
	var data struct {
		Recommendations []string `json:"recommendations"`
	}
	bbutil.SafeJSONUnmarshal(obj, &data)
	recs := data.Recommendations
	if len(recs) > 10 {
		recs = recs[:10]
	}

	if len(recs) == 0 || !deps.Cfg.Snapshot().ApplyNodeRecs {
		return content, recs, bbutil.RunTests(content, node.Contract), critiques
	}

	applyPrompt := fmt.Sprintf(nodeApplyPrompt, strings.Join(recs, "\n- "), content)
	revised, _, err := HedgedSolve(ctx, deps.Solver, deps.Limiter, applyPrompt, map[string]any{"mode": "node_apply", "node": node.Name}, 25*time.Second, 0)
	if err != nil {
		return content, recs, bbutil.RunTests(content, node.Contract), critiques
	}
	finalQA := bbutil.RunTests(revised, node.Contract)
	finalCritiques := runJudges(ctx, deps, revised, node.Contract)
	return revised, recs, finalQA, finalCritiques
}

// BypassedArtifact is the empty, "bypassed"-status artifact the
// scheduler records for a node that failed twice. err is not stored in
// the artifact.
func BypassedArtifact(name string, err error) bbtypes.Artifact {
	return bbtypes.Artifact{
		Node:    name,
		Content: "",
		QA:      bbtypes.QAResult{OK: false},
		Status:  bbtypes.StatusBypassed,
	}
}
