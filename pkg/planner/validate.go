package planner

import "github.com/reasonline/engine/pkg/bbtypes"

// ValidateAndRepair drops deps pointing at a later node in the given
// order, then runs Kahn's algorithm; any node left with positive
// in-degree (meaning it sits in a cycle) has its deps cleared entirely.
// Nodes are returned in their original order.
func ValidateAndRepair(nodes []bbtypes.Node) []bbtypes.Node {
	order := make(map[string]int, len(nodes))
	for i, n := range nodes {
		order[n.Name] = i
	}
	for i := range nodes {
		kept := nodes[i].Deps[:0:0]
		for _, d := range nodes[i].Deps {
			if pos, ok := order[d]; ok && pos < order[nodes[i].Name] {
				kept = append(kept, d)
			}
		}
		nodes[i].Deps = kept
	}

	indeg := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	byName := make(map[string]int, len(nodes))
	for i, n := range nodes {
		indeg[n.Name] = 0
		byName[n.Name] = i
	}
	for _, n := range nodes {
		for _, d := range n.Deps {
			indeg[n.Name]++
			succ[d] = append(succ[d], n.Name)
		}
	}

	queue := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if indeg[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}
	seen := 0
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		seen++
		for _, m := range succ[v] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if seen != len(nodes) {
		for i := range nodes {
			if indeg[nodes[i].Name] > 0 {
				nodes[i].Deps = nil
			}
		}
	}
	return nodes
}
