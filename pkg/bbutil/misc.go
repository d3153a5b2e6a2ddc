package bbutil

import "log/slog"

// ApproxTokens estimates token count as chars/4, floored at 1 (empty input
// also counts as 1), matching the approximation used when a backend omits real counts.
func ApproxTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// ClipChars roughly clips s to a token budget, at ~4 chars/token.
func ClipChars(s string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}

// AuditEvent logs a single-line structured audit record. kind names the
// event; fields are flattened slog attributes.
func AuditEvent(log *slog.Logger, kind string, fields ...any) {
	args := append([]any{"event", kind}, fields...)
	log.Info("audit", args...)
}
