package bbutil

import (
	"testing"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/stretchr/testify/assert"
)

func TestApplyPatchesInsertHeader(t *testing.T) {
	out := ApplyPatches("some body text", []bbtypes.Patch{
		{Kind: bbtypes.PatchInsertHeader, Arg: map[string]string{"title": "Analysis", "level": "2"}},
	}, nil)
	assert.Equal(t, "## Analysis\nsome body text", out)
}

func TestApplyPatchesAppendPrepend(t *testing.T) {
	out := ApplyPatches("body", []bbtypes.Patch{
		{Kind: bbtypes.PatchAppendText, Arg: map[string]string{"hint": "more"}},
	}, nil)
	assert.Equal(t, "body\n\nmore\n", out)

	out = ApplyPatches("body", []bbtypes.Patch{
		{Kind: bbtypes.PatchPrependText, Arg: map[string]string{"hint": "lead"}},
	}, nil)
	assert.Equal(t, "lead\n\nbody", out)
}

func TestApplyPatchesMalformedRegexSkipped(t *testing.T) {
	out := ApplyPatches("body", []bbtypes.Patch{
		{Kind: bbtypes.PatchRegexSub, Arg: map[string]string{"pattern": "(", "repl": "x"}},
		{Kind: bbtypes.PatchAppendText, Arg: map[string]string{"hint": "still applied"}},
	}, nil)
	assert.Contains(t, out, "still applied")
}
