package mockbackend

import (
	"context"
	"testing"

	"github.com/reasonline/engine/pkg/bbutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoSolverWrapsHeader(t *testing.T) {
	res, err := EchoSolver{}.Solve(context.Background(), "explain recursion", map[string]any{"node": "deep-dive"})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "## Deep Dive")
	assert.Contains(t, res.Text, "explain recursion")
	require.NotNil(t, res.TotalTokens)
}

func TestPromptLLMReturnsParseableFixedPlan(t *testing.T) {
	raw, err := PromptLLM{}.Complete(context.Background(), "anything", 0.0)
	require.NoError(t, err)
	obj, ok := bbutil.FirstJSONObject(raw)
	require.True(t, ok)

	var data struct {
		Nodes []struct {
			Name string   `json:"name"`
			Deps []string `json:"deps"`
		} `json:"nodes"`
	}
	require.True(t, bbutil.SafeJSONUnmarshal(obj, &data))
	require.Len(t, data.Nodes, 3)
	assert.Equal(t, "analysis", data.Nodes[0].Name)
	assert.Equal(t, []string{"analysis"}, data.Nodes[1].Deps)
}
