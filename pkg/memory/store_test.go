package memory

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/reasonline/engine/pkg/bbtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenInitializesFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.GetJudgeWeight("structure"))
}

func TestOpenRecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	require.NoError(t, os.WriteFile(path, []byte("not json{{{"), 0o644))

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.GetJudgeWeight("structure"))

	_, statErr := os.Stat(path + ".corrupt")
	assert.NoError(t, statErr)
}

func TestBumpJudgeClamped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	s.BumpJudge("structure", 5.0)
	assert.Equal(t, 3.0, s.GetJudgeWeight("structure"))

	s.BumpJudge("structure", -10.0)
	assert.Equal(t, 0.1, s.GetJudgeWeight("structure"))
}

func TestSaveIsAtomicAndReloadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)
	s.RecordPatch("append_text", true)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)

	var raw map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "patch_stats")
	assert.NotNil(t, reopened)
}

func TestBeliefConflictDetection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	s.AddBeliefs("sig1", "analysis", "run1", []bbtypes.Claim{
		{Subject: "the system", Predicate: "is", Object: "distributed", Polarity: true, Confidence: 0.8},
	})
	s.AddBeliefs("sig1", "answer", "run1", []bbtypes.Claim{
		{Subject: "the system", Predicate: "is", Object: "distributed", Polarity: false, Confidence: 0.8},
	})

	conflicts := s.DetectBeliefConflicts("sig1")
	require.Len(t, conflicts, 1)
	assert.NotEqual(t, conflicts[0].A.Polarity, conflicts[0].B.Polarity)
}

func TestKLineUpsertAndRetrieve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	s.UpsertKLine("sigA", "what is the capital of France", bbtypes.Classification{Kind: bbtypes.KindAtomic, Score: 0.1}, func(e *bbtypes.KLineEntry) {
		e.Nodes = []bbtypes.KLineNodeShape{{Name: "answer", Tmpl: "GENERIC", Section: "Answer"}}
		e.OKNodes = []string{"answer"}
	}, 256, 2000)

	entry := s.GetKLine("sigA")
	require.NotNil(t, entry)
	assert.Equal(t, "what is the capital of France", entry.Query)
	assert.Len(t, entry.EmbeddingQ, 256)

	results := s.QueryKLines("capital of France", 4, 0.1, 256)
	require.NotEmpty(t, results)
	assert.Equal(t, "sigA", results[0].Sig)
}

func TestReplayKLineFromTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	shapes := []bbtypes.KLineNodeShape{
		{Name: "analysis", Tmpl: "GENERIC", Role: bbtypes.RoleBackbone, Section: "Analysis"},
		{Name: "answer", Tmpl: "GENERIC", Role: bbtypes.RoleBackbone, Deps: []string{"analysis"}, Section: "Final Answer"},
	}
	s.AppendKLineTrace("sigB", shapes)

	nodes := s.ReplayKLine("sigB")
	require.Len(t, nodes, 2)
	assert.Equal(t, "analysis", nodes[0].Name)
	assert.Equal(t, []string{"analysis"}, nodes[1].Deps)
}

func TestPruneKLinesEnforcesCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mem.json")
	s, err := Open(path, testLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sig := string(rune('a' + i))
		s.UpsertKLine(sig, sig+" query text", bbtypes.Classification{Kind: bbtypes.KindAtomic}, nil, 64, 3)
	}
	assert.LessOrEqual(t, len(s.IterKLines()), 3)
}
