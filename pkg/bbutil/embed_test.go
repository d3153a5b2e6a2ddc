package bbutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedDeterministic(t *testing.T) {
	a := HashEmbed("The quick brown fox", 256)
	b := HashEmbed("The quick brown fox", 256)
	require.Equal(t, a, b)

	sim := Cosine(a, b)
	assert.GreaterOrEqual(t, sim, 0.999)
	assert.LessOrEqual(t, sim, 1.0)
}

func TestHashEmbedEmpty(t *testing.T) {
	v := HashEmbed("   ", 16)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestQuantizeRoundTrip(t *testing.T) {
	v := HashEmbed("reasoning about contradictions in text", 256)
	q := Quantize(v)
	dq := Dequantize(q)

	var sumSq float64
	for i := range v {
		d := v[i] - dq[i]
		sumSq += d * d
	}
	// Per-component quantization error is bounded by 1/(2*127); the
	// aggregate L2 error over a 256-dim vector is small relative to the
	// unit-normalized embedding.
	assert.Less(t, math.Sqrt(sumSq), 0.1)
}

func TestCosineMismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float64{1, 2}, []float64{1}))
}
