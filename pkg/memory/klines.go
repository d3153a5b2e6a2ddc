package memory

import (
	"sort"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// defaultClusterMinSim and defaultClusterLinkWeight mirror the reference
// implementation's clustering constants.
const (
	defaultClusterMinSim     = 0.55
	defaultClusterLinkWeight = 0.3
)

// GetKLine returns the entry for sig, or nil if absent.
func (s *Store) GetKLine(sig string) *bbtypes.KLineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.KLines[sig]
}

// PutKLine stores entry under sig and saves.
func (s *Store) PutKLine(sig string, entry *bbtypes.KLineEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.KLines[sig] = entry
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after put kline", "error", err)
	}
}

// IterKLines returns a snapshot copy of sig -> entry. Safe to range over
// without holding the store lock.
func (s *Store) IterKLines() map[string]*bbtypes.KLineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*bbtypes.KLineEntry, len(s.data.KLines))
	for k, v := range s.data.KLines {
		out[k] = v
	}
	return out
}

// ensureEntryEmbedding returns a full-precision embedding for entry,
// populating (and caching) it from embedding_q or, failing that, by
// re-hashing the stored query text. Must be called with s.mu held.
func (s *Store) ensureEntryEmbedding(sig string, entry *bbtypes.KLineEntry, dim int) []float64 {
	if v, ok := s.embedCache[sig]; ok && len(v) == dim {
		return v
	}
	var v []float64
	if len(entry.EmbeddingQ) == dim {
		v = bbutil.Dequantize(entry.EmbeddingQ)
	} else if entry.Query != "" {
		v = bbutil.HashEmbed(entry.Query, dim)
	}
	if len(v) == dim {
		s.embedCache[sig] = v
	}
	return v
}

// formClusters links every pair of k-lines whose embeddings cosine-similar
// at or above defaultClusterMinSim, weighted by similarity *
// defaultClusterLinkWeight.
func (s *Store) formClusters(dim int) {
	// caller holds s.mu
	sigs := make([]string, 0, len(s.data.KLines))
	for sig := range s.data.KLines {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)

	for i, a := range sigs {
		ea := s.data.KLines[a]
		va := s.ensureEntryEmbedding(a, ea, dim)
		for _, b := range sigs[i+1:] {
			eb := s.data.KLines[b]
			vb := s.ensureEntryEmbedding(b, eb, dim)
			sim := bbutil.Cosine(va, vb)
			if sim >= defaultClusterMinSim {
				s.linkKLinesLocked(a, b, sim*defaultClusterLinkWeight)
			}
		}
	}
}

// pruneKLines drops the oldest entries once the store exceeds maxEntries.
// Caller holds s.mu.
func (s *Store) pruneKLines(maxEntries int) {
	if len(s.data.KLines) <= maxEntries {
		return
	}
	type kv struct {
		sig string
		ts  time.Time
	}
	all := make([]kv, 0, len(s.data.KLines))
	for sig, e := range s.data.KLines {
		all = append(all, kv{sig, e.TS})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	drop := len(all) - maxEntries
	for i := 0; i < drop; i++ {
		delete(s.data.KLines, all[i].sig)
	}
	s.log.Info("memory: pruned kline store", "max_entries", maxEntries)
}

// UpsertKLine merges payload fields into an existing or new entry keyed by
// sig, computes and stores its quantized embedding from query (discarding
// any cached full-precision copy), reclusters, prunes, and saves.
func (s *Store) UpsertKLine(sig string, query string, classification bbtypes.Classification, mutate func(*bbtypes.KLineEntry), dim, maxEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.KLines[sig]
	if !ok {
		entry = &bbtypes.KLineEntry{Sig: sig}
	}
	if mutate != nil {
		mutate(entry)
	}
	if query != "" {
		entry.Query = query
		entry.EmbeddingQ = bbutil.Quantize(bbutil.HashEmbed(query, dim))
		delete(s.embedCache, sig)
	}
	if classification.Kind != "" {
		entry.Classification = classification
	}
	entry.TS = time.Now()
	s.data.KLines[sig] = entry

	s.formClusters(dim)
	s.pruneKLines(maxEntries)
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after upsert kline", "error", err)
	}
	s.log.Info("memory: upserted kline", "sig", sig)
}

// PenalizeKLine increments an entry's penalty counter.
func (s *Store) PenalizeKLine(sig string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data.KLines[sig]
	if !ok {
		return
	}
	entry.Penalty++
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after penalize kline", "error", err)
	}
	s.log.Info("memory: penalized kline", "sig", sig)
}

// LinkKLines bidirectionally assigns weight between two k-lines, keeping
// the max of any existing link weight.
func (s *Store) LinkKLines(sigA, sigB string, weight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkKLinesLocked(sigA, sigB, weight)
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after link klines", "error", err)
	}
}

func (s *Store) linkKLinesLocked(sigA, sigB string, weight float64) {
	for _, pair := range [2][2]string{{sigA, sigB}, {sigB, sigA}} {
		x, y := pair[0], pair[1]
		entry, ok := s.data.KLines[x]
		if !ok {
			entry = &bbtypes.KLineEntry{Sig: x}
			s.data.KLines[x] = entry
		}
		if entry.Links == nil {
			entry.Links = map[string]float64{}
		}
		if weight > entry.Links[y] {
			entry.Links[y] = weight
		}
	}
}

// ClusterRetrieve returns the top maxNeighbors linked k-lines by weight,
// descending, and emits a cluster_recall audit event per neighbor.
func (s *Store) ClusterRetrieve(sig string, maxNeighbors int) []struct {
	Sig    string
	Weight float64
} {
	s.mu.Lock()
	entry, ok := s.data.KLines[sig]
	var pairs []struct {
		Sig    string
		Weight float64
	}
	if ok {
		for nsig, w := range entry.Links {
			pairs = append(pairs, struct {
				Sig    string
				Weight float64
			}{nsig, w})
		}
	}
	s.mu.Unlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Weight > pairs[j].Weight })
	if len(pairs) > maxNeighbors {
		pairs = pairs[:maxNeighbors]
	}
	for _, p := range pairs {
		bbutil.AuditEvent(s.log, "cluster_recall", "source", sig, "neighbor", p.Sig, "weight", p.Weight)
	}
	return pairs
}

// ExplainRecall returns a compact summary of a k-line for audit purposes.
func (s *Store) ExplainRecall(sig string) map[string]any {
	s.mu.Lock()
	entry, ok := s.data.KLines[sig]
	s.mu.Unlock()

	info := map[string]any{}
	if ok {
		info["query"] = entry.Query
		info["classification"] = entry.Classification
		info["ts"] = entry.TS
		info["penalty"] = entry.Penalty
		info["links"] = entry.Links
	}
	bbutil.AuditEvent(s.log, "explain_recall", "sig", sig, "info", info)
	return info
}

// PromoteKLine creates or updates a synthetic composite parent over
// childSigs: adds missing children, sets level = max(child levels) + 1.
func (s *Store) PromoteKLine(parentSig string, childSigs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.data.KLines[parentSig]
	if !ok {
		parent = &bbtypes.KLineEntry{Sig: parentSig}
		s.data.KLines[parentSig] = parent
	}

	existing := map[string]bool{}
	for _, c := range parent.Children {
		existing[c] = true
	}
	maxLevel := 0
	for _, c := range childSigs {
		if !existing[c] {
			parent.Children = append(parent.Children, c)
			existing[c] = true
		}
		if child, ok := s.data.KLines[c]; ok && child.Level > maxLevel {
			maxLevel = child.Level
		}
	}
	parent.Level = maxLevel + 1
	parent.TS = time.Now()
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after promote kline", "error", err)
	}
}

// AppendKLineTrace appends a plan-snapshot trace to sig's entry.
func (s *Store) AppendKLineTrace(sig string, nodes []bbtypes.KLineNodeShape) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.KLines[sig]
	if !ok {
		entry = &bbtypes.KLineEntry{Sig: sig}
		s.data.KLines[sig] = entry
	}
	entry.Traces = append(entry.Traces, bbtypes.KLineTrace{TS: time.Now(), Nodes: nodes})
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after append trace", "error", err)
	}
}

// ReplayKLine reconstructs a Plan's Nodes from sig's latest trace
// (falling back to the legacy Nodes field), restoring name, tmpl, deps,
// role, contract, and prompt override. Malformed entries are skipped
// rather than aborting the replay.
func (s *Store) ReplayKLine(sig string) []bbtypes.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data.KLines[sig]
	if !ok {
		return nil
	}
	var shapes []bbtypes.KLineNodeShape
	if len(entry.Traces) > 0 {
		shapes = entry.Traces[len(entry.Traces)-1].Nodes
	} else {
		shapes = entry.Nodes
	}

	nodes := make([]bbtypes.Node, 0, len(shapes))
	for _, sh := range shapes {
		if sh.Name == "" || sh.Tmpl == "" {
			continue
		}
		nodes = append(nodes, bbtypes.Node{
			Name:           sh.Name,
			Tmpl:           sh.Tmpl,
			Deps:           sh.Deps,
			Contract:       sh.Contract,
			Role:           sh.Role,
			PromptOverride: sh.PromptOverride,
		})
	}
	return nodes
}
