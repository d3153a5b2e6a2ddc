package judge

import (
	"math"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// WeightFunc returns the stored weight for a judge name (default 1.0).
type WeightFunc func(name string) float64

// Deliberate combines a set of (judgeName, critique) pairs into a single
// consensus score: the mean when standard deviation < 0.15; else, if some
// rounded score has >= 2/3 support, that rounded score; else a weighted
// mean using per-judge weights from weightOf.
func Deliberate(critiques map[string]bbtypes.Critique, weightOf WeightFunc) float64 {
	if len(critiques) == 0 {
		return 0.7
	}

	scores := make([]float64, 0, len(critiques))
	for _, c := range critiques {
		scores = append(scores, c.Score)
	}

	mean := meanOf(scores)
	sd := stddevOf(scores, mean)
	if sd < 0.15 {
		return mean
	}

	if consensus, ok := roundedConsensus(scores); ok {
		return consensus
	}

	var wSum, wTotal float64
	for name, c := range critiques {
		w := 1.0
		if weightOf != nil {
			w = weightOf(name)
		}
		wSum += w * c.Score
		wTotal += w
	}
	if wTotal == 0 {
		return mean
	}
	return wSum / wTotal
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// roundedConsensus rounds each score to one decimal and checks whether any
// value has at least 2/3 support across the set.
func roundedConsensus(scores []float64) (float64, bool) {
	counts := map[float64]int{}
	for _, s := range scores {
		r := math.Round(s*10) / 10
		counts[r]++
	}
	need := (2 * len(scores)) / 3
	if (2*len(scores))%3 != 0 {
		need++
	}
	for v, n := range counts {
		if n >= need {
			return v, true
		}
	}
	return 0, false
}
