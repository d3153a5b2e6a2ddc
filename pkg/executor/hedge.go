package executor

import (
	"context"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

type hedgeOutcome struct {
	text   string
	tokens int
	err    error
}

// HedgedSolve spawns a primary solve immediately and, if hedging is
// enabled, a backup solve after hedgeDelay; both acquire a rate-limiter
// slot before calling the solver. Whichever completes first wins; the
// other is cancelled. With hedgeDelay <= 0, hedging is disabled and this
// degrades to a single call. Each arm is a single solver attempt — the
// scheduler, not this function, owns the one node-level retry before a
// node is bypassed. tokens is the winning call's CoerceTokens count.
func HedgedSolve(ctx context.Context, solver bbtypes.Solver, limiter *bbutil.RateLimiter, task string, ctxMap map[string]any, timeout, hedgeDelay time.Duration) (string, int, error) {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan hedgeOutcome, 2)
	call := func() {
		results <- callOnce(callCtx, solver, limiter, task, ctxMap, timeout)
	}

	go call()
	if hedgeDelay > 0 {
		go func() {
			t := time.NewTimer(hedgeDelay)
			defer t.Stop()
			select {
			case <-callCtx.Done():
				return
			case <-t.C:
			}
			call()
		}()
	}

	outcome := <-results
	return outcome.text, outcome.tokens, outcome.err
}

func callOnce(ctx context.Context, solver bbtypes.Solver, limiter *bbutil.RateLimiter, task string, ctxMap map[string]any, timeout time.Duration) hedgeOutcome {
	slot, err := limiter.Acquire(ctx)
	if err != nil {
		return hedgeOutcome{err: err}
	}
	defer slot.Release()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := solver.Solve(callCtx, task, ctxMap)
	if err != nil {
		return hedgeOutcome{err: err}
	}
	return hedgeOutcome{text: CoerceText(res), tokens: CoerceTokens(res)}
}
