// Package bbutil provides the orchestrator's text, JSON, embedding, QA,
// patching, and rate-limiting primitives — the load-bearing utility layer
// every other component builds on.
package bbutil

import (
	"regexp"
	"strings"
)

var ctrlRe = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F]")

// SanitizeText strips disallowed control characters and normalizes
// CRLF/CR line endings to LF.
func SanitizeText(s string) string {
	s = ctrlRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

// SafeFormat substitutes named "{key}" placeholders in template from kwargs.
// Unknown placeholders are left as literal "{key}" text so templates that
// happen to contain JSON braces don't fail to render.
func SafeFormat(template string, kwargs map[string]string) string {
	var b strings.Builder
	i := 0
	for i < len(template) {
		c := template[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(template[i+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		key := template[i+1 : i+1+end]
		if v, ok := kwargs[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteByte('{')
			b.WriteString(key)
			b.WriteByte('}')
		}
		i += end + 2
	}
	return b.String()
}

var slugRe = regexp.MustCompile(`[^a-z0-9_-]+`)

// Slug lowercases s and collapses every run of non [a-z0-9_-] characters to
// a single hyphen, trimming leading/trailing hyphens/underscores. Returns
// fallback if the result is empty.
func Slug(s, fallback string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-_")
	if s == "" {
		return fallback
	}
	return s
}

var headerRe = regexp.MustCompile(`(?m)^\s{0,3}(#+)\s+(.+?)\s*$`)

// EnsureHeader reports whether text already contains a markdown heading
// (any level) whose title equals wanted (case-insensitive). When absent it
// also returns a level-2 insert_header patch hint.
func EnsureHeader(text, wanted string) (bool, map[string]string) {
	want := strings.ToLower(wanted)
	for _, m := range headerRe.FindAllStringSubmatch(text, -1) {
		if strings.ToLower(strings.TrimSpace(m[2])) == want {
			return true, nil
		}
	}
	return false, map[string]string{"level": "2", "title": wanted}
}
