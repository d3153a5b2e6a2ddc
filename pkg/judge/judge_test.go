package judge

import (
	"context"
	"testing"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureJudgeMissingHeader(t *testing.T) {
	contract := bbtypes.Contract{Format: map[string]string{"markdown_section": "Analysis"}}
	c, err := (&StructureJudge{}).Critique(context.Background(), "no headers, just prose but long enough to pass the thin check here", contract)
	require.NoError(t, err)
	assert.Less(t, c.Score, 0.85)
	assert.Greater(t, c.Guidance["structure"], 0.0)
}

func TestBrevityJudgeThresholds(t *testing.T) {
	short := "word "
	c, _ := (&BrevityJudge{}).Critique(context.Background(), short, bbtypes.Contract{})
	assert.Equal(t, 0.72, c.Score)

	words := ""
	for i := 0; i < 200; i++ {
		words += "lorem "
	}
	c, _ = (&BrevityJudge{}).Critique(context.Background(), words, bbtypes.Contract{})
	assert.Equal(t, 0.9, c.Score)
}

func TestConsistencyJudgeDetectsSelfContradiction(t *testing.T) {
	text := "The system is distributed. Later the text claims the system is not distributed."
	c, _ := (&ConsistencyJudge{}).Critique(context.Background(), text, bbtypes.Contract{})
	assert.Equal(t, 0.6, c.Score)
}

func TestRunWithTimeoutYieldsNeutralOnError(t *testing.T) {
	j := &failingJudge{}
	c := RunWithTimeout(context.Background(), j, "text", bbtypes.Contract{}, 0)
	assert.Equal(t, NeutralCritique(), c)
}

type failingJudge struct{}

func (f *failingJudge) Name() string { return "failing" }
func (f *failingJudge) Critique(ctx context.Context, text string, contract bbtypes.Contract) (bbtypes.Critique, error) {
	<-ctx.Done()
	return bbtypes.Critique{}, ctx.Err()
}

func TestDeliberateLowVarianceMean(t *testing.T) {
	critiques := map[string]bbtypes.Critique{
		"a": {Score: 0.8},
		"b": {Score: 0.82},
		"c": {Score: 0.79},
	}
	got := Deliberate(critiques, nil)
	assert.InDelta(t, 0.8033, got, 0.01)
}

func TestDeliberateWeightedFallback(t *testing.T) {
	critiques := map[string]bbtypes.Critique{
		"a": {Score: 0.1},
		"b": {Score: 0.95},
		"c": {Score: 0.3},
	}
	weights := map[string]float64{"a": 3.0, "b": 0.1, "c": 1.0}
	got := Deliberate(critiques, func(n string) float64 { return weights[n] })
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 1.0)
}
