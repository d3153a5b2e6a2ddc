// Package config loads and holds the orchestrator's tunable configuration.
//
// Configuration is environment-driven (see the environment variable
// reference in the top-level spec): every field has a system default and
// can be overridden by an env var at process start. A handful of fields
// (MaxRounds, Concurrent, MinScore) are mutated at runtime by the
// executor's homeostat and stability check, so OrchestratorConfig embeds
// its own mutex and accessors rather than relying on callers to
// synchronize external reads/writes.
package config

import (
	"sync"
	"time"
)

// OrchestratorConfig holds every tunable the orchestration engine reads.
// Zero value is not meaningful; always obtain one via Defaults() or Load().
type OrchestratorConfig struct {
	mu sync.RWMutex

	LogLevel string

	// Concurrency & limits
	Concurrent       int           `validate:"gte=1"`
	MaxRounds        int           `validate:"gte=1,lte=5"`
	MinScore         float64       `validate:"gte=0,lte=1"`
	MaxTokensPerNode int           `validate:"gte=1"`
	MaxTokensPerRun  int           `validate:"gte=1"`
	NodeTimeout      time.Duration `validate:"gt=0"`
	JudgeTimeout     time.Duration `validate:"gt=0"`

	// Quality feature toggles
	EnableLLMJudge  bool
	ApplyNodeRecs   bool
	ApplyGlobalRecs bool

	// Hedging
	HedgeEnable   bool
	HedgeDelaySec float64 `validate:"gte=0"`

	// K-line memory
	KLineEnable     bool
	KLineTopK       int     `validate:"gte=0"`
	KLineMinSim     float64 `validate:"gte=0,lte=1"`
	KLineHintTokens int     `validate:"gte=0"`
	KLineEmbedDim   int     `validate:"gte=1"`
	KLineMaxEntries int     `validate:"gte=1"`

	// Global rate limiting
	GlobalMaxConcurrent int           `validate:"gte=1"`
	GlobalQPS           int           `validate:"gte=1"`
	GlobalBurstWindow   time.Duration `validate:"gt=0"`
	AuditMaxChars       int           `validate:"gte=0"`

	// Planning sources
	UseCQAP          bool
	UseLLMCQAP       bool
	PlanFromMeta     bool
	UseLLMClassifier bool
}

// HedgeDelay returns HedgeDelaySec as a time.Duration.
func (c *OrchestratorConfig) HedgeDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.HedgeDelaySec * float64(time.Second))
}

// Snapshot returns a copy of the config safe to read without further locking.
// The homeostat and stability check call SetMaxRounds/SetConcurrent/
// SetMinScore concurrently with node tasks reading these values; readers
// should use Snapshot (or the typed getters below) rather than touching the
// exported fields directly once the config is shared across goroutines.
func (c *OrchestratorConfig) Snapshot() OrchestratorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := *c
	cp.mu = sync.RWMutex{}
	return cp
}

// GetMaxRounds returns the current per-node improvement-loop round cap.
func (c *OrchestratorConfig) GetMaxRounds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxRounds
}

// SetMaxRounds updates the round cap, clamped to [1, 5] per the homeostat's
// adjustment bounds.
func (c *OrchestratorConfig) SetMaxRounds(v int) {
	if v < 1 {
		v = 1
	}
	if v > 5 {
		v = 5
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MaxRounds = v
}

// GetConcurrent returns the current node-task concurrency limit.
func (c *OrchestratorConfig) GetConcurrent() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Concurrent
}

// SetConcurrent updates the concurrency limit, clamped to a minimum of 1.
func (c *OrchestratorConfig) SetConcurrent(v int) {
	if v < 1 {
		v = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Concurrent = v
}

// GetMinScore returns the current stability-check acceptance floor.
func (c *OrchestratorConfig) GetMinScore() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MinScore
}

// SetMinScore updates the acceptance floor, capped at 0.95.
func (c *OrchestratorConfig) SetMinScore(v float64) {
	if v > 0.95 {
		v = 0.95
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MinScore = v
}
