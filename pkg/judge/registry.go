// Package judge implements the orchestrator's advisory scorers: the
// built-in structure/brevity/consistency judges, an optional LLM judge,
// the registry that holds them, and weighted deliberation over a set of
// critiques.
package judge

import (
	"context"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// Registry holds the set of judges consulted for every artifact.
type Registry struct {
	judges []bbtypes.Judge
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a judge to the registry.
func (r *Registry) Register(j bbtypes.Judge) {
	r.judges = append(r.judges, j)
}

// All returns a copy of the registered judges.
func (r *Registry) All() []bbtypes.Judge {
	out := make([]bbtypes.Judge, len(r.judges))
	copy(out, r.judges)
	return out
}

// DefaultRegistry returns a registry with the three built-in lightweight
// judges registered, matching the reference default set. The optional LLM
// judge is registered separately by the orchestrator when enabled.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&StructureJudge{})
	r.Register(&BrevityJudge{})
	r.Register(&ConsistencyJudge{})
	return r
}

// NeutralCritique is returned for a judge that times out or errors: a
// 0.7 score with no guidance.
func NeutralCritique() bbtypes.Critique {
	return bbtypes.Critique{Score: 0.7, Guidance: map[string]float64{}}
}

// RunWithTimeout critiques text with j, converting a context deadline or
// judge error into a NeutralCritique rather than propagating it.
func RunWithTimeout(ctx context.Context, j bbtypes.Judge, text string, contract bbtypes.Contract, timeout time.Duration) bbtypes.Critique {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		c   bbtypes.Critique
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := j.Critique(cctx, text, contract)
		ch <- result{c, err}
	}()

	select {
	case <-cctx.Done():
		return NeutralCritique()
	case r := <-ch:
		if r.err != nil {
			return NeutralCritique()
		}
		return r.c
	}
}
