package executor

import (
	"context"
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/config"
)

// RunHomeostat samples recentStatuses/recentScores once per second and
// nudges MaxRounds: more than 2 failures in the last 5 statuses bumps it
// up (capped at 5); an average score > 0.9 across >= 3 samples backs it
// down (floored at 1). It exits cleanly when ctx is cancelled.
func RunHomeostat(ctx context.Context, cfg *config.OrchestratorConfig, recent func() ([]bbtypes.Status, []float64)) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statuses, scores := recent()
			failures := 0
			for _, s := range lastN(statuses, 5) {
				if s == bbtypes.StatusFailed || s == bbtypes.StatusBypassed {
					failures++
				}
			}
			if failures > 2 {
				cfg.SetMaxRounds(cfg.GetMaxRounds() + 1)
			}
			if avg, n := meanFloat(scores); n >= 3 && avg > 0.9 {
				cfg.SetMaxRounds(cfg.GetMaxRounds() - 1)
			}
		}
	}
}

func lastN[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func meanFloat(xs []float64) (float64, int) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), len(xs)
}
