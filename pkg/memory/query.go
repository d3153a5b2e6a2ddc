package memory

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// Candidate is one k-line retrieval hit.
type Candidate struct {
	Sig    string
	Entry  *bbtypes.KLineEntry
	Sim    float64
	CScore float64
}

type simHeapItem struct {
	sig string
	sim float64
}

// simMinHeap keeps the lowest-similarity item at the root so a bounded
// top-k scan can evict it when a better candidate arrives.
type simMinHeap []simHeapItem

func (h simMinHeap) Len() int            { return len(h) }
func (h simMinHeap) Less(i, j int) bool  { return h[i].sim < h[j].sim }
func (h simMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *simMinHeap) Push(x any)         { *h = append(*h, x.(simHeapItem)) }
func (h *simMinHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// QueryKLines computes the hashed embedding of text and retrieves the
// top_k most similar k-lines (sim >= minSim), ranked by a cluster-bonus
// score that rewards entries whose linked neighbors are also similar to
// the query, then expands the result through children/links up to depth 3
// with per-hop decay, capped at 4*topK total results.
func (s *Store) QueryKLines(text string, topK int, minSim float64, dim int) []Candidate {
	if topK <= 0 {
		return nil
	}
	q := bbutil.HashEmbed(text, dim)

	s.mu.Lock()
	entries := make(map[string]*bbtypes.KLineEntry, len(s.data.KLines))
	embeds := make(map[string][]float64, len(s.data.KLines))
	for sig, e := range s.data.KLines {
		entries[sig] = e
		embeds[sig] = s.ensureEntryEmbedding(sig, e, dim)
	}
	s.mu.Unlock()

	h := &simMinHeap{}
	heap.Init(h)
	for sig, v := range embeds {
		sim := bbutil.Cosine(q, v)
		if sim < minSim {
			continue
		}
		if h.Len() < topK {
			heap.Push(h, simHeapItem{sig, sim})
		} else if h.Len() > 0 && (*h)[0].sim < sim {
			heap.Pop(h)
			heap.Push(h, simHeapItem{sig, sim})
		}
	}

	base := make([]Candidate, 0, h.Len())
	for _, item := range *h {
		base = append(base, Candidate{Sig: item.sig, Entry: entries[item.sig], Sim: item.sim})
	}

	// Cluster bonus: for each linked neighbor, add 0.1 * weight * cosine(query, neighbor).
	for i := range base {
		c := &base[i]
		c.CScore = c.Sim
		if c.Entry == nil {
			continue
		}
		for nsig, w := range c.Entry.Links {
			nv, ok := embeds[nsig]
			if !ok {
				continue
			}
			c.CScore += 0.1 * w * bbutil.Cosine(q, nv)
		}
	}

	sort.Slice(base, func(i, j int) bool { return base[i].CScore > base[j].CScore })

	capN := 4 * topK
	seen := make(map[string]bool, len(base))
	result := make([]Candidate, 0, capN)
	for _, c := range base {
		if seen[c.Sig] {
			continue
		}
		seen[c.Sig] = true
		result = append(result, c)
	}

	// Multi-hop expansion: children (level >= 1) decay 0.98/step, linked
	// neighbors decay 0.97/step, breadth-first to depth 3.
	type frontierItem struct {
		sig   string
		score float64
		depth int
	}
	var frontier []frontierItem
	for _, c := range result {
		frontier = append(frontier, frontierItem{c.Sig, c.CScore, 0})
	}

	for len(frontier) > 0 && len(result) < capN {
		var next []frontierItem
		for _, f := range frontier {
			if f.depth >= 3 {
				continue
			}
			entry := entries[f.sig]
			if entry == nil {
				continue
			}
			if entry.Level >= 1 {
				for _, child := range entry.Children {
					if seen[child] || entries[child] == nil {
						continue
					}
					score := f.score * 0.98
					seen[child] = true
					result = append(result, Candidate{Sig: child, Entry: entries[child], CScore: score})
					next = append(next, frontierItem{child, score, f.depth + 1})
					if len(result) >= capN {
						break
					}
				}
			}
			for nsig := range entry.Links {
				if seen[nsig] || entries[nsig] == nil {
					continue
				}
				score := f.score * 0.97
				seen[nsig] = true
				result = append(result, Candidate{Sig: nsig, Entry: entries[nsig], CScore: score})
				next = append(next, frontierItem{nsig, score, f.depth + 1})
				if len(result) >= capN {
					break
				}
			}
			if len(result) >= capN {
				break
			}
		}
		frontier = next
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].CScore > result[j].CScore })
	if len(result) > capN {
		result = result[:capN]
	}
	return result
}

// SummarizeNeighbors produces a compact hint block from a retrieval result:
// average similarity, the most common plan "shapes" (node-name sequences),
// frequently weak node names, top global recommendations, and the
// classification-kind mix — capped at charBudget characters.
func SummarizeNeighbors(neighbors []Candidate, charBudget int) string {
	if len(neighbors) == 0 {
		return ""
	}

	var simSum float64
	shapeCounts := map[string]int{}
	kindCounts := map[bbtypes.Kind]int{}
	recSet := map[string]int{}
	weakNode := map[string]int{}

	for _, n := range neighbors {
		simSum += n.Sim
		if n.Entry == nil {
			continue
		}
		names := make([]string, 0, len(n.Entry.Nodes))
		ok := make(map[string]bool, len(n.Entry.OKNodes))
		for _, on := range n.Entry.OKNodes {
			ok[on] = true
		}
		for _, nd := range n.Entry.Nodes {
			names = append(names, nd.Name)
			if !ok[nd.Name] {
				weakNode[nd.Name]++
			}
		}
		shapeCounts[strings.Join(names, ">")]++
		kindCounts[n.Entry.Classification.Kind]++
		for _, r := range n.Entry.GlobalRecs {
			recSet[r]++
		}
	}
	avgSim := simSum / float64(len(neighbors))

	var b strings.Builder
	fmt.Fprintf(&b, "PRIOR HINTS (n=%d, avg_sim=%.2f)\n", len(neighbors), avgSim)

	if shape := topKey(shapeCounts); shape != "" {
		fmt.Fprintf(&b, "common shape: %s\n", shape)
	}
	if weak := topKey(weakNode); weak != "" {
		fmt.Fprintf(&b, "frequently weak node: %s\n", weak)
	}
	if len(recSet) > 0 {
		b.WriteString("top recommendations:\n")
		for _, rec := range topKeys(recSet, 3) {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	if len(kindCounts) > 0 {
		b.WriteString("classification mix: ")
		first := true
		for k, c := range kindCounts {
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s=%d", k, c)
		}
		b.WriteString("\n")
	}

	out := b.String()
	if len(out) > charBudget {
		out = out[:charBudget]
	}
	return out
}

func topKey(counts map[string]int) string {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN {
			best, bestN = k, n
		}
	}
	return best
}

func topKeys(counts map[string]int, n int) []string {
	type kv struct {
		k string
		n int
	}
	all := make([]kv, 0, len(counts))
	for k, c := range counts {
		all = append(all, kv{k, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].n != all[j].n {
			return all[i].n > all[j].n
		}
		return all[i].k < all[j].k
	})
	if len(all) > n {
		all = all[:n]
	}
	out := make([]string, 0, len(all))
	for _, e := range all {
		out = append(out, e.k)
	}
	return out
}
