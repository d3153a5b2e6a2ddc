// Package planner turns a query (plus an optional mission or CQAP slot
// map) into a validated DAG Plan: classification, three plan compilers
// tried in priority order, and a topological validator.
package planner

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

var (
	deliverableRe = regexp.MustCompile(`(?i)\b(design|architecture|spec|contract|roadmap|benchmark|compare|trade[- ]?offs?|rfc|plan|protocol|implementation|experiment|evaluate)\b`)
	dependencyRe  = regexp.MustCompile(`(?i)\b(after|before|then|depends|precede|follow|stage|phase|blocker|unblock)\b`)
	bulletRe      = regexp.MustCompile(`(?m)(^\s*[-*]\s+|^\d+\.\s+)`)
	verbRe        = regexp.MustCompile(`(?i)\b(\w+?)(?:ed|ing|e|ify|ise|ize)\b`)
	wordTokenRe   = regexp.MustCompile(`\b\w+\b`)
)

// ClassifyQuery scores a raw query with a weighted sum of cue counts and
// partitions it into Atomic (<0.25), Hybrid (<0.55), or Composite.
func ClassifyQuery(query string) bbtypes.Classification {
	q := strings.TrimSpace(query)
	wc := len(wordTokenRe.FindAllString(q, -1))

	score := 0.34*frac(len(deliverableRe.FindAllString(q, -1)), 3) +
		0.26*frac(len(dependencyRe.FindAllString(q, -1)), 2) +
		0.20*frac(len(bulletRe.FindAllString(q, -1)), 3) +
		0.10*boolf(wc > 100) +
		0.10*frac(len(verbRe.FindAllString(q, -1)), 14)

	kind := bbtypes.KindAtomic
	switch {
	case score >= 0.55:
		kind = bbtypes.KindComposite
	case score >= 0.25:
		kind = bbtypes.KindHybrid
	}
	return bbtypes.Classification{Kind: kind, Score: round3(score)}
}

func frac(n, d int) float64 {
	v := float64(n) / float64(d)
	if v > 1.0 {
		return 1.0
	}
	return v
}

func boolf(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

const classifySchemaHint = `{ "kind":"Atomic|Hybrid|Composite","score":0..1,"rationale":"...","cues":{...} }`

// ClassifyQueryLLM prompts the planner LLM with a strict JSON schema and
// falls back to ClassifyQuery on any failure to reach or parse the
// response. If the LLM calls a query Atomic but breadth/depth cues are
// high, the score is nudged upward to flag a possible hybrid.
func ClassifyQueryLLM(ctx context.Context, llm bbtypes.PlannerLLM, query string) bbtypes.Classification {
	if llm == nil {
		return ClassifyQuery(query)
	}
	prompt := "SYSTEM: CLASSIFY\nReturn ONLY JSON.\nSchema: " + classifySchemaHint +
		"\nTask: Classify scope/complexity.\nQUERY: " + query

	raw, err := llm.Complete(ctx, prompt, 0.0)
	if err != nil {
		return ClassifyQuery(query)
	}
	obj, ok := bbutil.FirstJSONObject(raw)
	if !ok {
		return ClassifyQuery(query)
	}
	var data struct {
		Kind  string  `json:"kind"`
		Score float64 `json:"score"`
	}
	if !bbutil.SafeJSONUnmarshal(obj, &data) {
		return ClassifyQuery(query)
	}
	if data.Kind == "" {
		data.Kind = string(bbtypes.KindAtomic)
	}
	cls := bbtypes.Classification{Kind: bbtypes.Kind(data.Kind), Score: data.Score}

	if cls.Kind == bbtypes.KindAtomic {
		breadth := len(deliverableRe.FindAllString(query, -1))
		depth := len(dependencyRe.FindAllString(query, -1))
		if breadth >= 2 || depth >= 2 {
			cls.Kind = bbtypes.KindHybrid
			if cls.Score < 0.25 {
				cls.Score = 0.25
			}
		}
	}
	return cls
}
