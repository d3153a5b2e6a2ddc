package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/reasonline/engine/pkg/bbtypes"
	"golang.org/x/sync/semaphore"
)

// Hooks are the orchestrator's optional node-lifecycle callbacks. A
// failing hook is logged and otherwise ignored — it never aborts the run.
type Hooks struct {
	OnNodeStart    func(name string)
	OnNodeComplete func(art bbtypes.Artifact)
}

// RunDAG executes nodes concurrently, bounded by concurrency, honoring
// dependencies. On a node's first failure it is retried once; on a
// second failure it is marked bypassed, its own dependency edges are
// spliced directly onto its successors (so the DAG keeps flowing
// instead of stalling), and the run continues.
func RunDAG(ctx context.Context, nodes []bbtypes.Node, deps NodeDeps, concurrency int, hooks Hooks, log *slog.Logger) map[string]bbtypes.Artifact {
	return RunDAGWithSeed(ctx, nodes, nil, deps, concurrency, hooks, log)
}

// RunDAGWithSeed is RunDAG with a pre-populated set of upstream artifacts
// (e.g. a completed backbone pass). Seeded entries are visible to every
// node's context/prompt assembly and satisfy any dependency edge pointing
// at them without gating scheduling on a node outside this batch.
func RunDAGWithSeed(ctx context.Context, nodes []bbtypes.Node, seed map[string]bbtypes.Artifact, deps NodeDeps, concurrency int, hooks Hooks, log *slog.Logger) map[string]bbtypes.Artifact {
	byName := make(map[string]bbtypes.Node, len(nodes))
	indeg := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	// liveDeps holds each node's full dependency list (including names
	// resolved only via seed) and is what gets attached to the node
	// passed to RunImprovementLoop, so context assembly still sees
	// seeded (e.g. backbone) artifacts. schedDeps holds the subset
	// that actually gates scheduling in this batch.
	liveDeps := make(map[string][]string, len(nodes))
	schedDeps := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		byName[n.Name] = n
		liveDeps[n.Name] = append([]string{}, n.Deps...)
	}
	for _, n := range nodes {
		var local []string
		for _, d := range n.Deps {
			if _, ok := byName[d]; ok {
				local = append(local, d)
			}
		}
		schedDeps[n.Name] = local
	}
	for _, n := range nodes {
		indeg[n.Name] = len(schedDeps[n.Name])
		for _, d := range schedDeps[n.Name] {
			succ[d] = append(succ[d], n.Name)
		}
	}

	var mu sync.Mutex
	blackboard := make(map[string]bbtypes.Artifact, len(nodes)+len(seed))
	for k, v := range seed {
		blackboard[k] = v
	}
	sem := semaphore.NewWeighted(int64(maxInt(concurrency, 1)))

	type done struct {
		name string
		art  bbtypes.Artifact
	}
	results := make(chan done, len(nodes))
	started := make(map[string]bool, len(nodes))
	pending := len(nodes)

	var start func(name string)
	start = func(name string) {
		started[name] = true
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- done{name: name, art: BypassedArtifact(name, err)}
				return
			}
			defer sem.Release(1)

			if hooks.OnNodeStart != nil {
				safeCall(log, func() { hooks.OnNodeStart(name) })
			}

			mu.Lock()
			snapshot := snapshotBoard(blackboard)
			mu.Unlock()

			node := byName[name]
			node.Deps = liveDeps[name]
			art, err := RunImprovementLoop(ctx, node, snapshot, deps)
			if err != nil {
				log.Warn("node failed, retrying once", "node", name, "error", err)
				art, err = RunImprovementLoop(ctx, node, snapshot, deps)
				if err != nil {
					log.Error("node failed twice, bypassing", "node", name, "error", err)
					art = BypassedArtifact(name, err)
				}
			}
			results <- done{name: name, art: art}
		}()
	}

	for _, n := range nodes {
		if indeg[n.Name] == 0 {
			start(n.Name)
		}
	}

	for pending > 0 {
		d := <-results
		pending--

		mu.Lock()
		blackboard[d.name] = d.art
		mu.Unlock()

		if hooks.OnNodeComplete != nil {
			safeCall(log, func() { hooks.OnNodeComplete(d.art) })
		}

		if d.art.Status == bbtypes.StatusBypassed {
			spliceBypassed(d.name, liveDeps, schedDeps, succ)
		}

		for _, m := range succ[d.name] {
			indeg[m]--
			if indeg[m] == 0 && !started[m] {
				start(m)
			}
		}
	}

	return blackboard
}

// spliceBypassed rewrites every successor of a bypassed node to depend
// directly on that node's own deps instead of on it, so the DAG doesn't
// stall waiting on content that will never exist. liveDeps (context,
// may include seeded upstream names) and schedDeps (the in-batch
// scheduling graph) are spliced with their own respective replacement
// sets; only schedDeps drives the succ/indegree rewiring.
func spliceBypassed(bypassedName string, liveDeps, schedDeps map[string][]string, succ map[string][]string) {
	splice := func(m map[string][]string, name string, replacement []string) {
		next := make([]string, 0, len(m[name])+len(replacement))
		seen := map[string]bool{}
		for _, d := range m[name] {
			if d == bypassedName {
				for _, r := range replacement {
					if !seen[r] {
						seen[r] = true
						next = append(next, r)
					}
				}
				continue
			}
			if !seen[d] {
				seen[d] = true
				next = append(next, d)
			}
		}
		m[name] = next
	}

	liveReplacement := liveDeps[bypassedName]
	schedReplacement := schedDeps[bypassedName]
	for _, m := range succ[bypassedName] {
		splice(liveDeps, m, liveReplacement)
		splice(schedDeps, m, schedReplacement)
		for _, r := range schedReplacement {
			succ[r] = append(succ[r], m)
		}
	}
}

func snapshotBoard(board map[string]bbtypes.Artifact) map[string]bbtypes.Artifact {
	cp := make(map[string]bbtypes.Artifact, len(board))
	for k, v := range board {
		cp[k] = v
	}
	return cp
}

func safeCall(log *slog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("hook panicked", "recover", r)
		}
	}()
	fn()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
