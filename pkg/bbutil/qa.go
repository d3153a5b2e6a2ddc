package bbutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/reasonline/engine/pkg/bbtypes"
)

var wordRe = regexp.MustCompile(`\b\w+\b`)

func wordCount(content string) int {
	return len(wordRe.FindAllString(content, -1))
}

// RunTests evaluates a Contract's tests against content and returns the QA
// result. Test kinds: nonempty, regex, contains, word_count_min,
// header_present.
func RunTests(content string, contract bbtypes.Contract) bbtypes.QAResult {
	var issues []bbtypes.Issue
	words := wordCount(content)
	if words < 1 {
		issues = append(issues, bbtypes.Issue{Code: "empty"})
	}

	for _, t := range contract.Tests {
		switch t.Kind {
		case bbtypes.TestNonempty:
			if words < 1 {
				issues = append(issues, bbtypes.Issue{Code: "nonempty_fail"})
			}
		case bbtypes.TestRegex:
			re, err := regexp.Compile("(?im)" + t.Arg)
			if err != nil {
				issues = append(issues, bbtypes.Issue{
					Code:    "regex_invalid",
					Details: map[string]string{"pattern": t.Arg},
				})
				continue
			}
			if !re.MatchString(content) {
				issues = append(issues, bbtypes.Issue{
					Code:    "regex_fail",
					Details: map[string]string{"pattern": t.Arg},
				})
			}
		case bbtypes.TestContains:
			if !strings.Contains(strings.ToLower(content), strings.ToLower(t.Arg)) {
				issues = append(issues, bbtypes.Issue{
					Code:    "contains_missing",
					Details: map[string]string{"needle": t.Arg},
				})
			}
		case bbtypes.TestWordCountMin:
			need, err := strconv.Atoi(t.Arg)
			if err != nil {
				need = 50
			}
			if words < need {
				issues = append(issues, bbtypes.Issue{
					Code:    "too_short",
					Details: map[string]string{"needed": strconv.Itoa(need), "have": strconv.Itoa(words)},
					Suggested: []bbtypes.Patch{{
						Kind: bbtypes.PatchAppendText,
						Arg:  map[string]string{"hint": fmt.Sprintf("Expand with %d+ words.", need-words)},
					}},
				})
			}
		case bbtypes.TestHeaderPresent:
			ok, patch := EnsureHeader(content, t.Arg)
			if !ok {
				issue := bbtypes.Issue{Code: "header_missing", Details: map[string]string{"wanted": t.Arg}}
				if patch != nil {
					issue.Suggested = []bbtypes.Patch{{Kind: bbtypes.PatchInsertHeader, Arg: patch}}
				}
				issues = append(issues, issue)
			}
		}
	}

	return bbtypes.QAResult{OK: len(issues) == 0, Issues: issues}
}
