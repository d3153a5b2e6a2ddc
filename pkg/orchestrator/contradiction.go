package orchestrator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// subjectIsRe finds "<subject> is [not] ..." clauses: a short leading noun
// phrase, the copula, and an optional negation.
var subjectIsRe = regexp.MustCompile(`(?i)\b([a-z][a-z0-9' _-]{1,60}?)\s+is\s+(not\s+)?`)

var leadingArticleRe = regexp.MustCompile(`(?i)^(the|a|an)\s+`)

type assertion struct {
	node     string
	polarity bool // true = positive ("is"), false = negative ("is not")
}

// DetectContradictions mines every artifact's content for "<subject>
// is [not] ..." clauses, groups them by normalized subject, and reports
// one (nodeA, nodeB, subject) triple — nodeA < nodeB lexically — per
// unique pair of nodes asserting opposite polarity about the same
// subject.
func DetectContradictions(blackboard map[string]bbtypes.Artifact) []bbtypes.Contradiction {
	bySubject := map[string][]assertion{}

	nodeNames := make([]string, 0, len(blackboard))
	for name := range blackboard {
		nodeNames = append(nodeNames, name)
	}
	sort.Strings(nodeNames)

	for _, name := range nodeNames {
		art := blackboard[name]
		for _, sentence := range splitSentences(art.Content) {
			m := subjectIsRe.FindStringSubmatch(sentence)
			if m == nil {
				continue
			}
			subject := normalizeSubject(m[1])
			if subject == "" {
				continue
			}
			bySubject[subject] = append(bySubject[subject], assertion{node: name, polarity: m[2] == ""})
		}
	}

	seen := map[bbtypes.Contradiction]bool{}
	var out []bbtypes.Contradiction
	for subject, assertions := range bySubject {
		var positives, negatives []string
		for _, a := range assertions {
			if a.polarity {
				positives = append(positives, a.node)
			} else {
				negatives = append(negatives, a.node)
			}
		}
		for _, pos := range positives {
			for _, neg := range negatives {
				if pos == neg {
					continue
				}
				nodeA, nodeB := pos, neg
				if nodeB < nodeA {
					nodeA, nodeB = nodeB, nodeA
				}
				c := bbtypes.Contradiction{NodeA: nodeA, NodeB: nodeB, Subject: subject}
				if !seen[c] {
					seen[c] = true
					out = append(out, c)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].NodeA != out[j].NodeA {
			return out[i].NodeA < out[j].NodeA
		}
		if out[i].NodeB != out[j].NodeB {
			return out[i].NodeB < out[j].NodeB
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// splitSentences drops markdown header lines, joins the remaining lines
// with spaces, and splits the result on sentence punctuation.
func splitSentences(text string) []string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "#") {
			kept = append(kept, l)
		}
	}
	text = strings.Join(kept, " ")
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeSubject(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = leadingArticleRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if len(strings.Fields(s)) == 0 {
		return ""
	}
	return s
}
