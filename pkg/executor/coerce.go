package executor

import (
	"regexp"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/reasonline/engine/pkg/bbutil"
)

// solverReprRe matches a stringified SolverResult repr such as
// SolverResult(text='...') so CoerceText can recover the inner text
// when a Solver implementation accidentally stringifies its own
// result type instead of returning SolverResult.Text directly.
var solverReprRe = regexp.MustCompile(`(?s)SolverResult\(text=['"](.*?)['"]\s*[,)]`)

// CoerceText extracts usable text from a SolverResult, unwrapping a
// stringified "SolverResult(text='...')" repr if one leaked into Text.
func CoerceText(res bbtypes.SolverResult) string {
	if m := solverReprRe.FindStringSubmatch(res.Text); m != nil {
		return m[1]
	}
	return res.Text
}

// CoerceTokens returns the result's reported total token count, or an
// approximation (len/4) from its text when the backend didn't report one.
func CoerceTokens(res bbtypes.SolverResult) int {
	if res.TotalTokens != nil {
		return *res.TotalTokens
	}
	return bbutil.ApproxTokens(res.Text)
}
