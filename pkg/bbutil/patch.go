package bbutil

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// ApplyPatches applies patches to content in order. Kinds: insert_header,
// append_text, prepend_text, regex_sub. A malformed patch (bad regex) is
// skipped and logged rather than aborting the whole sequence.
func ApplyPatches(content string, patches []bbtypes.Patch, log *slog.Logger) string {
	out := content
	for _, p := range patches {
		switch p.Kind {
		case bbtypes.PatchInsertHeader:
			title := p.Arg["title"]
			if title == "" {
				title = "Section"
			}
			level := 2
			if l, err := strconv.Atoi(p.Arg["level"]); err == nil {
				level = l
			}
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			hdr := strings.Repeat("#", level) + " " + title
			trimmed := strings.TrimSpace(out)
			if trimmed == "" {
				out = hdr + "\n"
				continue
			}
			lines := strings.Split(out, "\n")
			if len(lines) > 0 && strings.HasPrefix(lines[0], "#") {
				lines[0] = hdr
			} else {
				lines = append([]string{hdr}, lines...)
			}
			out = strings.Join(lines, "\n")
		case bbtypes.PatchAppendText:
			hint := strings.TrimSpace(p.Arg["hint"])
			if hint != "" {
				out = strings.TrimRight(out, " \t\n") + "\n\n" + hint + "\n"
			}
		case bbtypes.PatchPrependText:
			hint := strings.TrimSpace(p.Arg["hint"])
			if hint != "" {
				out = hint + "\n\n" + strings.TrimLeft(out, " \t\n")
			}
		case bbtypes.PatchRegexSub:
			pat := p.Arg["pattern"]
			repl := p.Arg["repl"]
			re, err := regexp.Compile("(?m)" + pat)
			if err != nil {
				if log != nil {
					log.Info("audit", "event", "regex_sub_error", "pattern", clip(pat, 256), "error", err.Error())
				}
				continue
			}
			out = re.ReplaceAllString(out, repl)
		}
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
