// Package mockbackend provides deterministic Solver and PlannerLLM
// implementations for tests and the CLI's --mock flag: no network calls,
// stable output shape, safe to run in CI without credentials.
package mockbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// EchoSolver echoes the task back under an H2 header named after the
// node in context, deterministic and side-effect-free.
type EchoSolver struct{}

func (EchoSolver) Solve(ctx context.Context, task string, ctxMap map[string]any) (bbtypes.SolverResult, error) {
	section := "Answer"
	if ctxMap != nil {
		if n, ok := ctxMap["node"].(string); ok && n != "" {
			section = n
		}
	}
	section = titleCase(strings.ReplaceAll(section, "-", " "))

	text := fmt.Sprintf("## %s\n\n%s\n", section, strings.TrimSpace(task))
	total := len(text) / 4
	return bbtypes.SolverResult{Text: text, TotalTokens: &total}, nil
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}

// analysisNodePrompt, answerNodePrompt, and examplesNodePrompt are the
// fixed per-node prompts PromptLLM embeds into its static 3-node demo
// plan, standing in for the node-template registry a real planner LLM
// would draw from.
const (
	analysisNodePrompt = "Analyze the query and lay out the key considerations."
	answerNodePrompt   = "Using the analysis above, write the final answer."
	examplesNodePrompt = "Provide two or three concrete examples illustrating the answer."
)

// PromptLLM is a deterministic planner stand-in: it ignores the prompt
// entirely and returns a fixed three-node JSON plan (analysis → answer
// → examples), useful as a demo fallback and as a planner_test.go style
// stub target.
type PromptLLM struct{}

func (PromptLLM) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	return fixedPlanJSON, nil
}

const fixedPlanJSON = `{
  "nodes": [
    {
      "name": "analysis",
      "prompt": "` + analysisNodePrompt + `",
      "deps": [],
      "role": "backbone",
      "contract": {
        "format": {"markdown_section": "Analysis"},
        "tests": [{"kind": "nonempty", "arg": ""}, {"kind": "word_count_min", "arg": "100"}]
      }
    },
    {
      "name": "answer",
      "prompt": "` + answerNodePrompt + `",
      "deps": ["analysis"],
      "role": "backbone",
      "contract": {
        "format": {"markdown_section": "Final Answer"},
        "tests": [{"kind": "nonempty", "arg": ""}, {"kind": "contains", "arg": "analysis"}]
      }
    },
    {
      "name": "examples",
      "prompt": "` + examplesNodePrompt + `",
      "deps": ["answer"],
      "role": "adjunct",
      "contract": {
        "format": {"markdown_section": "Examples"},
        "tests": [{"kind": "nonempty", "arg": ""}]
      }
    }
  ]
}`

// BuildDefault returns the demo fallback Solver and PlannerLLM pair.
func BuildDefault() (bbtypes.Solver, bbtypes.PlannerLLM) {
	return EchoSolver{}, PromptLLM{}
}
