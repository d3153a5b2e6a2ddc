package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Load builds an OrchestratorConfig from Defaults(), overridden by any of
// the environment variables in the reference table. Unset or unparsable
// variables silently keep the default and log a warning for the latter.
func Load() *OrchestratorConfig {
	c := Defaults()

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)

	c.Concurrent = getEnvInt("LOCAL_CONCURRENT", c.Concurrent)
	c.MaxRounds = getEnvInt("MAX_ROUNDS", c.MaxRounds)
	c.MinScore = getEnvFloat("MIN_SCORE", c.MinScore)
	c.MaxTokensPerNode = getEnvInt("MAX_TOKENS_PER_NODE", c.MaxTokensPerNode)
	c.MaxTokensPerRun = getEnvInt("MAX_TOKENS_PER_RUN", c.MaxTokensPerRun)
	c.NodeTimeout = getEnvSeconds("NODE_TIMEOUT_SEC", c.NodeTimeout)
	c.JudgeTimeout = getEnvSeconds("JUDGE_TIMEOUT_SEC", c.JudgeTimeout)

	c.EnableLLMJudge = getEnvBool("ENABLE_LLM_JUDGE", c.EnableLLMJudge)
	c.ApplyNodeRecs = getEnvBool("APPLY_NODE_RECS", c.ApplyNodeRecs)
	c.ApplyGlobalRecs = getEnvBool("APPLY_GLOBAL_RECS", c.ApplyGlobalRecs)
	c.HedgeEnable = getEnvBool("HEDGE_ENABLE", c.HedgeEnable)
	c.HedgeDelaySec = getEnvFloat("HEDGE_DELAY_SEC", c.HedgeDelaySec)

	c.KLineEnable = getEnvBool("KLINE_ENABLE", c.KLineEnable)
	c.KLineTopK = getEnvInt("KLINE_TOP_K", c.KLineTopK)
	c.KLineMinSim = getEnvFloat("KLINE_MIN_SIM", c.KLineMinSim)
	c.KLineHintTokens = getEnvInt("KLINE_HINT_TOKENS", c.KLineHintTokens)
	c.KLineEmbedDim = getEnvInt("KLINE_EMBED_DIM", c.KLineEmbedDim)
	c.KLineMaxEntries = getEnvInt("KLINE_MAX_ENTRIES", c.KLineMaxEntries)

	c.GlobalMaxConcurrent = getEnvInt("GLOBAL_MAX_CONCURRENT", c.GlobalMaxConcurrent)
	c.GlobalQPS = getEnvInt("GLOBAL_QPS", c.GlobalQPS)
	c.GlobalBurstWindow = getEnvSeconds("GLOBAL_BURST_WINDOW", c.GlobalBurstWindow)
	c.AuditMaxChars = getEnvInt("AUDIT_MAX_CHARS", c.AuditMaxChars)

	c.UseCQAP = getEnvBool("USE_CQAP", c.UseCQAP)
	c.UseLLMCQAP = getEnvBool("USE_LLM_CQAP", c.UseLLMCQAP)
	c.PlanFromMeta = getEnvBool("PLAN_FROM_META", c.PlanFromMeta)
	c.UseLLMClassifier = getEnvBool("USE_LLM_CLASSIFIER", c.UseLLMClassifier)

	if err := c.Validate(); err != nil {
		slog.Warn("config: env overrides produced an invalid value, falling back to defaults", "error", err)
		return Defaults()
	}

	return c
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: ignoring unparsable int env var", "key", key, "value", v, "error", err)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config: ignoring unparsable float env var", "key", key, "value", v, "error", err)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config: ignoring unparsable bool env var", "key", key, "value", v, "error", err)
		return fallback
	}
	return b
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config: ignoring unparsable duration env var", "key", key, "value", v, "error", err)
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}
