package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
)

func beliefID(subject, predicate, object string, polarity bool) string {
	pol := "0"
	if polarity {
		pol = "1"
	}
	raw := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(subject)),
		strings.ToLower(strings.TrimSpace(predicate)),
		object, pol)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

// AddBeliefs upserts claims into the belief store, deduplicated by
// (subject, predicate, object, polarity). Confidence is the max over
// duplicates; provenance rows accumulate.
func (s *Store) AddBeliefs(sig, node, runID string, claims []bbtypes.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, c := range claims {
		id := beliefID(c.Subject, c.Predicate, c.Object, c.Polarity)
		existing, ok := s.data.Beliefs[id]
		conf := c.Confidence
		if conf == 0 {
			conf = 0.5
		}
		prov := []bbtypes.BeliefProvenance{{Sig: sig, Node: node, RunID: runID, TS: now}}
		if ok {
			if existing.Confidence > conf {
				conf = existing.Confidence
			}
			prov = append(existing.Provenance, prov...)
		}
		s.data.Beliefs[id] = bbtypes.Belief{
			ID:         id,
			Subject:    c.Subject,
			Predicate:  c.Predicate,
			Object:     c.Object,
			Polarity:   c.Polarity,
			Confidence: conf,
			Provenance: prov,
		}
	}
	s.log.Info("memory: added beliefs", "count", len(claims), "sig", sig, "node", node)
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after add beliefs", "error", err)
	}
}

// BeliefsForSig returns every belief with at least one provenance row for sig.
func (s *Store) BeliefsForSig(sig string) map[string]bbtypes.Belief {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[string]bbtypes.Belief{}
	for id, b := range s.data.Beliefs {
		for _, p := range b.Provenance {
			if p.Sig == sig {
				out[id] = b
				break
			}
		}
	}
	return out
}

type beliefKey struct {
	subject, predicate, object string
}

// DetectBeliefConflicts returns pairs of beliefs sharing (subject,
// predicate, object) whose polarities differ. When scopeSig is non-empty,
// only beliefs with a provenance row for that signature are considered.
func (s *Store) DetectBeliefConflicts(scopeSig string) []bbtypes.BeliefConflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := map[beliefKey]bbtypes.Belief{}
	var conflicts []bbtypes.BeliefConflict

	for _, b := range s.data.Beliefs {
		if scopeSig != "" {
			inScope := false
			for _, p := range b.Provenance {
				if p.Sig == scopeSig {
					inScope = true
					break
				}
			}
			if !inScope {
				continue
			}
		}
		k := beliefKey{strings.ToLower(b.Subject), strings.ToLower(b.Predicate), b.Object}
		if other, ok := byKey[k]; ok {
			if other.Polarity != b.Polarity {
				conflicts = append(conflicts, bbtypes.BeliefConflict{A: other, B: b})
			}
		} else {
			byKey[k] = b
		}
	}
	s.log.Info("memory: detected belief conflicts", "count", len(conflicts))
	return conflicts
}
