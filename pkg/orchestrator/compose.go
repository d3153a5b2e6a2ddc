package orchestrator

import (
	"regexp"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

var contextHeaderLineRe = regexp.MustCompile(`(?i)^##\s*Context\s*\(deps\)`)
var bulletLineRe = regexp.MustCompile(`^\s*-\s.*$`)
var blankRunRe = regexp.MustCompile(`\n{3,}`)

// stripInternalMarkers removes the rendered "## Context (deps)" scaffolding
// block and any trailing "Constraints:" bullet list from a node's raw
// content, then collapses runs of 2+ blank lines to one. Go's RE2 engine
// has no lookahead, so this walks lines instead of the original's single
// lookahead-based regex pass.
func stripInternalMarkers(text string) string {
	text = bbutil.SanitizeText(text)
	lines := strings.Split(text, "\n")
	var out []string

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if contextHeaderLineRe.MatchString(trimmed) {
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "##") {
				i++
			}
			continue
		}
		if trimmed == "Constraints:" {
			i++
			for i < len(lines) && bulletLineRe.MatchString(lines[i]) {
				i++
			}
			continue
		}
		out = append(out, lines[i])
		i++
	}

	joined := strings.Join(out, "\n")
	joined = blankRunRe.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

// Compose assembles the final markdown document: each plan node's
// (cleaned) content, prefixed with its markdown section header if
// missing, joined with a horizontal rule, plus an optional trailing
// resolution section.
func Compose(plan bbtypes.Plan, blackboard map[string]bbtypes.Artifact, includeResolution string) string {
	var parts []string
	for _, n := range plan.Nodes {
		art, ok := blackboard[n.Name]
		content := "(no content)"
		if ok {
			content = art.Content
		}
		sec := n.Contract.MarkdownSection()
		if sec == "" {
			sec = titleCase(n.Name)
		}
		cleaned := stripInternalMarkers(content)
		if !strings.Contains(cleaned, "## "+sec) {
			cleaned = "## " + sec + "\n\n" + strings.TrimSpace(cleaned)
		}
		parts = append(parts, cleaned)
	}
	if includeResolution != "" {
		parts = append(parts, includeResolution)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n---\n\n")) + "\n"
}

func titleCase(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}
