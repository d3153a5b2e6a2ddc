package executor

import "github.com/reasonline/engine/pkg/config"

// StabilityTracker maintains the moving-average and exponentially
// smoothed score history driving the Lyapunov-style stability check.
type StabilityTracker struct {
	window       []float64 // last 5 samples, for the moving average
	smoothed     float64
	haveSmoothed bool
	lastEnergy   *float64
}

const (
	smoothingAlpha = 0.3
	movingWindow   = 5
)

// Observe records one pass's artifact scores (the Critiques' Deliberate
// outputs, or any representative per-node quality score).
func (t *StabilityTracker) Observe(scores []float64) {
	for _, s := range scores {
		t.window = append(t.window, s)
		if len(t.window) > movingWindow {
			t.window = t.window[len(t.window)-movingWindow:]
		}
		if !t.haveSmoothed {
			t.smoothed = s
			t.haveSmoothed = true
		} else {
			t.smoothed = smoothingAlpha*s + (1-smoothingAlpha)*t.smoothed
		}
	}
}

func (t *StabilityTracker) predictedQuality() float64 {
	if len(t.window) == 0 {
		return t.smoothed
	}
	var sum float64
	for _, s := range t.window {
		sum += s
	}
	movingAvg := sum / float64(len(t.window))
	if !t.haveSmoothed {
		return movingAvg
	}
	return (movingAvg + t.smoothed) / 2
}

// CheckAndTighten computes E = pendingTokens/maxTokens + (1 -
// predictedQuality); if E did not decrease versus the previous check, it
// tightens cfg (concurrency -= 1, min 1; min_score += 0.02, cap 0.95).
// Returns the new energy, which becomes the baseline for the next call.
func (t *StabilityTracker) CheckAndTighten(cfg *config.OrchestratorConfig, pendingTokens, maxTokens int) float64 {
	ratio := 0.0
	if maxTokens > 0 {
		ratio = float64(pendingTokens) / float64(maxTokens)
	}
	energy := ratio + (1 - t.predictedQuality())

	if t.lastEnergy != nil && energy >= *t.lastEnergy {
		cfg.SetConcurrent(cfg.GetConcurrent() - 1)
		cfg.SetMinScore(cfg.GetMinScore() + 0.02)
	}
	e := energy
	t.lastEnergy = &e
	return energy
}
