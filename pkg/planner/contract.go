package planner

import (
	"strconv"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// MkContract builds a contract requiring non-empty content, a markdown
// header matching section, and optionally a minimum word count.
func MkContract(section string, minWords int) bbtypes.Contract {
	tests := []bbtypes.TestSpec{
		{Kind: bbtypes.TestNonempty},
		{Kind: bbtypes.TestHeaderPresent, Arg: section},
	}
	if minWords > 0 {
		tests = append(tests, bbtypes.TestSpec{Kind: bbtypes.TestWordCountMin, Arg: strconv.Itoa(minWords)})
	}
	return bbtypes.Contract{Format: map[string]string{"markdown_section": section}, Tests: tests}
}

var allowedTestKinds = map[string]bool{
	bbtypes.TestNonempty:      true,
	bbtypes.TestRegex:         true,
	bbtypes.TestContains:      true,
	bbtypes.TestWordCountMin:  true,
	bbtypes.TestHeaderPresent: true,
}

// rawTestSpec is the tolerant wire shape of a test entry inside a
// free-form plan's contract object.
type rawTestSpec struct {
	Kind string `json:"kind"`
	Arg  any    `json:"arg"`
}

// rawContract is the tolerant wire shape of a free-form plan node's
// contract object.
type rawContract struct {
	Format map[string]string `json:"format"`
	Tests  []rawTestSpec     `json:"tests"`
}

// parseContract builds a Contract from a tolerant raw shape, filling in
// the required nonempty/header_present tests if the caller omitted them.
func parseContract(raw rawContract, fallbackSection string) bbtypes.Contract {
	format := raw.Format
	if format == nil {
		format = map[string]string{}
	}
	var tests []bbtypes.TestSpec
	for _, t := range raw.Tests {
		if !allowedTestKinds[t.Kind] {
			continue
		}
		tests = append(tests, bbtypes.TestSpec{Kind: t.Kind, Arg: argToString(t.Arg)})
	}
	if _, ok := format["markdown_section"]; !ok {
		format["markdown_section"] = fallbackSection
	}
	hasNonempty, hasHeader := false, false
	for _, t := range tests {
		if t.Kind == bbtypes.TestNonempty {
			hasNonempty = true
		}
		if t.Kind == bbtypes.TestHeaderPresent {
			hasHeader = true
		}
	}
	if !hasNonempty {
		tests = append(tests, bbtypes.TestSpec{Kind: bbtypes.TestNonempty})
	}
	if !hasHeader {
		tests = append(tests, bbtypes.TestSpec{Kind: bbtypes.TestHeaderPresent, Arg: format["markdown_section"]})
	}
	return bbtypes.Contract{Format: format, Tests: tests}
}

func argToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
