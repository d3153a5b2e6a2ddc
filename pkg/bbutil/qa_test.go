package bbutil

import (
	"testing"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/stretchr/testify/assert"
)

func TestRunTests(t *testing.T) {
	contract := bbtypes.Contract{
		Format: map[string]string{"markdown_section": "Analysis"},
		Tests: []bbtypes.TestSpec{
			{Kind: bbtypes.TestNonempty},
			{Kind: bbtypes.TestHeaderPresent, Arg: "Analysis"},
			{Kind: bbtypes.TestWordCountMin, Arg: "5"},
			{Kind: bbtypes.TestContains, Arg: "fox"},
		},
	}

	t.Run("passes", func(t *testing.T) {
		qa := RunTests("## Analysis\n\nthe quick brown fox jumps high", contract)
		assert.True(t, qa.OK)
		assert.Empty(t, qa.Issues)
	})

	t.Run("fails multiple", func(t *testing.T) {
		qa := RunTests("## Wrong\n\nshort", contract)
		assert.False(t, qa.OK)
		codes := make([]string, 0, len(qa.Issues))
		for _, iss := range qa.Issues {
			codes = append(codes, iss.Code)
		}
		assert.Contains(t, codes, "header_missing")
		assert.Contains(t, codes, "too_short")
		assert.Contains(t, codes, "contains_missing")
	})

	t.Run("invalid regex yields distinct issue", func(t *testing.T) {
		c := bbtypes.Contract{Tests: []bbtypes.TestSpec{{Kind: bbtypes.TestRegex, Arg: "("}}}
		qa := RunTests("anything", c)
		assert.False(t, qa.OK)
		assert.Equal(t, "regex_invalid", qa.Issues[0].Code)
	})
}
