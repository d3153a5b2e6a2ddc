// Package executor runs a validated Plan against a Solver: hedged
// calls, token budgets, the per-node improvement loop, the DAG
// scheduler with failure bypass, the homeostat, and the stability
// check.
package executor

// TemplateRegistry maps a node's tmpl field to its prompt body. Every
// entry is rendered with {section}, {deps_bullets}, and {query}
// placeholders via bbutil.SafeFormat. Unknown templates fall back to
// GENERIC.
var TemplateRegistry = map[string]string{
	"GENERIC":           "## {section}\n\n{deps_bullets}\n\n{query}\n",
	"MISSION_OBJECTIVE": "## {section}\n\nSynthesize this objective's findings for: {query}\n\n{deps_bullets}\n",
	"MISSION_QUERIES":   "## {section}\n\nAnswer the stage's sub-queries for: {query}\n\n{deps_bullets}\n",
	"MISSION_TACTIC":    "## {section}\n\nExecute this tactic in support of: {query}\n\n{deps_bullets}\n",
	"MISSION_SYNTHESIS": "## {section}\n\nSynthesize all objectives into one answer for: {query}\n\n{deps_bullets}\n",
	"CQAP_SLOT":         "## {section}\n\n{deps_bullets}\n\n{query}\n",
	"CQAP_FINAL":        "## {section}\n\nCompose the final answer for: {query}\n\n{deps_bullets}\n",
}

const nodeRecommendPrompt = "Recommend up to 10 concrete improvements for section %s:\n%s"
const nodeApplyPrompt = "Apply these recommendations:\n%s\n---\n%s"
