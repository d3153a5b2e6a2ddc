package adapter

import (
	"fmt"
	"strconv"
	"strings"
)

// MissionStartToken and MissionEndToken delimit an embedded mission JSON
// blob inside a task string, bit-exact with the external interface.
const (
	MissionStartToken = "<<<MISSION_JSON>>>"
	MissionEndToken   = "<<<END_MISSION>>>"
)

// EmbedMission prepends a mission JSON blob (already marshaled) to task
// between the start/end tokens, or returns task unchanged if missionJSON
// is empty.
func EmbedMission(task, missionJSON string) string {
	if strings.TrimSpace(missionJSON) == "" {
		return task
	}
	return MissionStartToken + "\n" + missionJSON + "\n" + MissionEndToken + "\n\n" + task
}

// HeuristicMissionFromQuery builds the deterministic three-stage
// fallback mission (Clarify intent / Design and select / Validate and
// deliver) used whenever the planner LLM fails to produce a usable
// mission plan.
func HeuristicMissionFromQuery(query string) map[string]any {
	q := strings.TrimSpace(query)
	return map[string]any{
		"query_context": q,
		"Strategy": []any{
			map[string]any{
				"Objective": "Clarify intent, constraints, and success criteria",
				"queries": map[string]any{
					"Q1": "What are the hard requirements and definition of done?",
					"Q2": "What context, assumptions, and existing systems impact the solution?",
				},
				"tactics": []any{
					map[string]any{"t1": "Draft a concise problem brief (scope, constraints, risks).", "dependencies": []string{}, "expected_artifact": "Problem_Brief.md"},
					map[string]any{"t2": "Define SLIs/SLOs and validation criteria.", "dependencies": []string{"Problem_Brief.md"}, "expected_artifact": "Success_Criteria.md"},
				},
				"tenant": []string{},
			},
			map[string]any{
				"Objective": "Design and select an approach with explicit trade-offs",
				"queries": map[string]any{
					"Q1": "What viable architectures exist?",
					"Q2": "Key trade-offs vs cost/risk/operability?",
				},
				"tactics": []any{
					map[string]any{"t1": "Propose a primary design (components, interfaces, data).", "dependencies": []string{"Success_Criteria.md"}, "expected_artifact": "Design_Proposal.md"},
					map[string]any{"t2": "Compare alternatives and justify selection.", "dependencies": []string{"Design_Proposal.md"}, "expected_artifact": "Tradeoffs.md"},
				},
				"tenant": []string{},
			},
			map[string]any{
				"Objective": "Validate and prepare delivery",
				"queries": map[string]any{
					"Q1": "How will we test, rollout, observe, and roll back safely?",
				},
				"tactics": []any{
					map[string]any{"t1": "Write a test plan and rollout/canary/rollback playbook.", "dependencies": []string{"Tradeoffs.md"}, "expected_artifact": "Test_and_Rollback_Plan.md"},
					map[string]any{"t2": "Synthesize a final deliverable tying everything together.", "dependencies": []string{"Design_Proposal.md", "Test_and_Rollback_Plan.md"}, "expected_artifact": "Final_Report.md"},
				},
				"tenant": []string{},
			},
		},
	}
}

// NormalizeMission tolerates a wide variety of loosely-shaped mission
// JSON from an LLM: upper/lower Objective key casing, queries given as
// a dict, list, or bare scalar, and tactic description keys detected
// by a leading "t" rather than a fixed name. Falls back to the
// heuristic mission whenever Strategy is missing or empty.
func NormalizeMission(obj map[string]any, query string) map[string]any {
	if obj == nil {
		return HeuristicMissionFromQuery(query)
	}
	stratIn, ok := obj["Strategy"].([]any)
	if !ok || len(stratIn) == 0 {
		return HeuristicMissionFromQuery(query)
	}

	var outStrat []any
	for _, raw := range stratIn {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		objective := firstNonEmptyKey(s, "Objective", "objective", "O1", "o1")
		if objective == "" {
			objective = "Objective"
		}

		queries := map[string]any{}
		switch q := s["queries"].(type) {
		case map[string]any:
			i := 1
			for _, v := range q {
				if val := strings.TrimSpace(fmt.Sprint(v)); val != "" {
					queries["Q"+strconv.Itoa(i)] = val
					i++
				}
			}
		case []any:
			for i, v := range q {
				if val := strings.TrimSpace(fmt.Sprint(v)); val != "" {
					queries["Q"+strconv.Itoa(i+1)] = val
				}
			}
		case string:
			if val := strings.TrimSpace(q); val != "" {
				queries["Q1"] = val
			}
		}

		var tactics []any
		if tRaw, ok := s["tactics"].([]any); ok {
			for i, tv := range tRaw {
				tactics = append(tactics, normalizeTactic(tv, i+1))
			}
		}

		out := map[string]any{
			"Objective": objective,
			"queries":   queries,
			"tactics":   tactics,
			"tenant":    asStringList(s["tenant"]),
		}
		outStrat = append(outStrat, out)
	}

	queryContext := query
	if qc, ok := obj["query_context"].(string); ok && qc != "" {
		queryContext = qc
	}
	return map[string]any{"query_context": queryContext, "Strategy": outStrat}
}

func normalizeTactic(raw any, idx int) map[string]any {
	t, ok := raw.(map[string]any)
	if !ok {
		desc := strings.TrimSpace(fmt.Sprint(raw))
		key := "t" + strconv.Itoa(idx)
		return map[string]any{key: desc, "dependencies": []string{}, "expected_artifact": fmt.Sprintf("O%d_T%d_Artifact", idx, idx)}
	}
	for k, v := range t {
		if strings.HasPrefix(strings.ToLower(k), "t") {
			desc := strings.TrimSpace(fmt.Sprint(v))
			deps := asStringList(t["dependencies"])
			art := strings.TrimSpace(fmt.Sprint(t["expected_artifact"]))
			if art == "" || art == "<nil>" {
				art = strings.ToUpper(k) + "_Artifact"
			}
			return map[string]any{k: desc, "dependencies": deps, "expected_artifact": art}
		}
	}
	tid := strings.ToLower(strings.TrimSpace(fmt.Sprint(t["id"])))
	if !strings.HasPrefix(tid, "t") {
		tid = "t" + strconv.Itoa(idx)
	}
	desc := strings.TrimSpace(fmt.Sprint(t["description"]))
	if desc == "" || desc == "<nil>" {
		desc = "Tactic " + strings.ToUpper(tid)
	}
	deps := asStringList(t["dependencies"])
	art := strings.TrimSpace(fmt.Sprint(t["expected_artifact"]))
	if art == "" || art == "<nil>" {
		art = fmt.Sprintf("O%d_%s_Artifact", idx, strings.ToUpper(tid))
	}
	return map[string]any{tid: desc, "dependencies": deps, "expected_artifact": art}
}

func firstNonEmptyKey(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func asStringList(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s := strings.TrimSpace(fmt.Sprint(e)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return x
	case string, int, float64:
		if s := strings.TrimSpace(fmt.Sprint(x)); s != "" {
			return []string{s}
		}
	}
	return []string{}
}
