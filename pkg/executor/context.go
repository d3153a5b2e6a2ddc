package executor

import (
	"regexp"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

var depsHeaderRe = regexp.MustCompile(`(?m)^###\s+(.+?)\s*$`)

// BuildContext renders a compact "## Context (deps)" block from the
// node's (live) upstream artifacts, each under a "### <dep>" header,
// truncated to roughly tokenBudget tokens total.
func BuildContext(node bbtypes.Node, blackboard map[string]bbtypes.Artifact, tokenBudget int) string {
	var parts []string
	used := 0
	for _, d := range node.Deps {
		a, ok := blackboard[d]
		if !ok {
			continue
		}
		room := tokenBudget - used
		if room <= 0 {
			break
		}
		body := strings.TrimSpace(bbutil.SanitizeText(a.Content))
		maxChars := room * 4
		if maxChars < len(body) {
			body = body[:maxChars]
		}
		parts = append(parts, "### "+d+"\n"+body)
		used += len(body) / 4
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.TrimSpace("## Context (deps)\n" + strings.Join(parts, "\n\n"))
}

// DepsBullets summarizes a node's upstream artifacts into a short bullet
// list: one line per dep naming it and previewing up to 120 characters
// of its content, either sliced out of an already-built context block or,
// failing that, directly off the blackboard.
func DepsBullets(contextText string, node bbtypes.Node, blackboard map[string]bbtypes.Artifact) string {
	if contextText != "" {
		matches := depsHeaderRe.FindAllStringSubmatchIndex(contextText, -1)
		var bullets []string
		for i, m := range matches {
			name := contextText[m[2]:m[3]]
			bodyStart := m[1]
			bodyEnd := len(contextText)
			if i+1 < len(matches) {
				bodyEnd = matches[i+1][0]
			}
			body := strings.ReplaceAll(strings.TrimSpace(contextText[bodyStart:bodyEnd]), "\n", " ")
			body = clipRunes(body, 120)
			bullets = append(bullets, "- "+name+": "+body)
		}
		if len(bullets) > 0 {
			return strings.Join(bullets, "\n")
		}
	}

	var previews []string
	for _, d := range node.Deps {
		a, ok := blackboard[d]
		if !ok {
			continue
		}
		body := strings.ReplaceAll(clipRunes(a.Content, 120), "\n", " ")
		previews = append(previews, "- "+d+": "+body)
	}
	return strings.Join(previews, "\n")
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}

func clipRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// AssembleNodePrompt resolves the node's template (override, registry,
// GENERIC fallback), renders it with section/deps_bullets/query, and
// prepends the context block, clipped to maxTokens.
func AssembleNodePrompt(node bbtypes.Node, blackboard map[string]bbtypes.Artifact, query string, contextTokenBudget, maxTokens int) string {
	contextTxt := BuildContext(node, blackboard, contextTokenBudget)
	depsBullets := DepsBullets(contextTxt, node, blackboard)

	template := ""
	if node.PromptOverride != nil {
		template = *node.PromptOverride
	}
	if template == "" {
		var ok bool
		template, ok = TemplateRegistry[node.Tmpl]
		if !ok {
			template = TemplateRegistry["GENERIC"]
		}
	}

	section := node.Contract.MarkdownSection()
	if section == "" {
		section = titleCase(strings.ReplaceAll(node.Name, "-", " "))
	}

	base := bbutil.SafeFormat(template, map[string]string{
		"section":      section,
		"deps_bullets": depsBullets,
		"query":        query,
	})

	full := base
	if contextTxt != "" {
		full = contextTxt + "\n\n" + base
	}
	return bbutil.ClipChars(full, maxTokens)
}
