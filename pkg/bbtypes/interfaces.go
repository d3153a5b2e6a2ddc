package bbtypes

import "context"

// Solver is the black-box generative backend contract. Implementations
// must return a distinguishable error on timeout (wrap context.DeadlineExceeded
// or context.Canceled so callers can detect it with errors.Is).
//
// ctxMap keys observed by the core: "mode" (one of node, node_recommend,
// node_apply, judge, cohesion, cohesion_apply, dense_final,
// contradiction_resolution, improve_round), "node" (name), "deps" (list).
type Solver interface {
	Solve(ctx context.Context, task string, ctxMap map[string]any) (SolverResult, error)
}

// PlannerLLM is the planning-completion contract. Implementations must be
// deterministic enough at temperature 0 to be reproducible under tests
// with a mock implementation.
type PlannerLLM interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Judge is an advisory scorer. Implementations are expected to return
// within the caller-supplied context deadline; callers convert a
// context error into a neutral Critique rather than propagating it.
type Judge interface {
	Name() string
	Critique(ctx context.Context, text string, contract Contract) (Critique, error)
}
