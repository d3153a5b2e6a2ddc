package config

import "time"

// DefaultEmbedDim is the dimensionality of hashed query embeddings when
// KLINE_EMBED_DIM is unset.
const DefaultEmbedDim = 256

// DefaultMaxEntries bounds the k-line store when KLINE_MAX_ENTRIES is unset.
const DefaultMaxEntries = 2000

// Defaults returns an OrchestratorConfig populated with the system defaults
// from the environment variable reference. Load merges environment
// overrides on top of this.
func Defaults() *OrchestratorConfig {
	return &OrchestratorConfig{
		LogLevel: "info",

		Concurrent:       8,
		MaxRounds:        4,
		MinScore:         0.7,
		MaxTokensPerNode: 4000,
		MaxTokensPerRun:  20000,
		NodeTimeout:      80 * time.Second,
		JudgeTimeout:     10 * time.Second,

		EnableLLMJudge:  false,
		ApplyNodeRecs:   true,
		ApplyGlobalRecs: true,
		HedgeEnable:     true,
		HedgeDelaySec:   0.8,

		KLineEnable:     true,
		KLineTopK:       4,
		KLineMinSim:     0.25,
		KLineHintTokens: 500,
		KLineEmbedDim:   DefaultEmbedDim,
		KLineMaxEntries: DefaultMaxEntries,

		GlobalMaxConcurrent: 32,
		GlobalQPS:           16,
		GlobalBurstWindow:   500 * time.Millisecond,
		AuditMaxChars:       16384,

		UseCQAP:          true,
		UseLLMCQAP:       true,
		PlanFromMeta:     true,
		UseLLMClassifier: true,
	}
}
