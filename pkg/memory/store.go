// Package memory implements the orchestrator's persistent JSON-backed
// memory store: judge weights, patch statistics, k-line retrieval and
// clustering, and lightweight belief tracking.
package memory

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// JudgeRecord is the persisted per-judge weight.
type JudgeRecord struct {
	Weight float64 `json:"weight"`
}

// PatchStat counts ok/fail outcomes for one patch kind.
type PatchStat struct {
	OK   int `json:"ok"`
	Fail int `json:"fail"`
}

type storeData struct {
	Judges     map[string]JudgeRecord        `json:"judges"`
	PatchStats map[string]PatchStat          `json:"patch_stats"`
	KLines     map[string]*bbtypes.KLineEntry `json:"klines"`
	Beliefs    map[string]bbtypes.Belief      `json:"beliefs"`
	SelfModels map[string]bbtypes.SelfModel   `json:"self_models"`
}

func freshData() storeData {
	return storeData{
		Judges:     map[string]JudgeRecord{},
		PatchStats: map[string]PatchStat{},
		KLines:     map[string]*bbtypes.KLineEntry{},
		Beliefs:    map[string]bbtypes.Belief{},
		SelfModels: map[string]bbtypes.SelfModel{},
	}
}

// Store is a JSON-file-backed memory store. All public methods are
// externally thread-safe via an internal mutex guarding read-modify-write
// and save.
type Store struct {
	path string
	log  *slog.Logger

	mu   sync.Mutex
	data storeData

	// embedCache holds full-precision embeddings recovered from
	// embedding_q (or regenerated from query text) — never persisted,
	// since the on-disk format stores only the quantized vector.
	embedCache map[string][]float64
}

// Open loads (or initializes) a Store at path. A corrupt file is moved
// aside with a .corrupt suffix and a fresh store is started in its place.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	s := &Store{path: path, log: log, embedCache: map[string][]float64{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = freshData()
			s.log.Debug("memory: initialized new store", "path", s.path)
			return nil
		}
		return err
	}

	var d storeData
	if jsonErr := sonic.Unmarshal(raw, &d); jsonErr != nil {
		s.log.Error("memory: corrupt store file, moving aside", "path", s.path, "error", jsonErr)
		corrupt := s.path + ".corrupt"
		if renErr := os.Rename(s.path, corrupt); renErr != nil {
			s.log.Error("memory: failed to rename corrupt store", "error", renErr)
		}
		s.data = freshData()
		return nil
	}
	if d.Judges == nil {
		d.Judges = map[string]JudgeRecord{}
	}
	if d.PatchStats == nil {
		d.PatchStats = map[string]PatchStat{}
	}
	if d.KLines == nil {
		d.KLines = map[string]*bbtypes.KLineEntry{}
	}
	if d.Beliefs == nil {
		d.Beliefs = map[string]bbtypes.Belief{}
	}
	if d.SelfModels == nil {
		d.SelfModels = map[string]bbtypes.SelfModel{}
	}
	s.data = d
	s.log.Info("memory: loaded store", "path", s.path)
	return nil
}

// save must be called with s.mu held. It writes to a temp file and
// atomically renames over the target path, retrying the write+rename a
// few times with a short backoff since both can fail transiently under
// concurrent access to the same store file (e.g. another process holding
// the temp path momentarily, or a slow disk).
func (s *Store) save() error {
	raw, err := sonic.Marshal(s.data)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxElapsedTime = 500 * time.Millisecond

	err = backoff.Retry(func() error {
		if err := os.WriteFile(tmp, raw, 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, s.path)
	}, bo)
	if err != nil {
		return err
	}
	s.log.Debug("memory: saved store", "path", s.path)
	return nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
