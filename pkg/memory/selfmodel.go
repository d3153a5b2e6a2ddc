package memory

import (
	"time"

	"github.com/reasonline/engine/pkg/bbtypes"
)

// GetSelfModel returns the stored self-model for sig, or a zero value if none.
func (s *Store) GetSelfModel(sig string) bbtypes.SelfModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SelfModels[sig]
}

// StoreSelfModel persists a self-model blob for sig and saves.
func (s *Store) StoreSelfModel(sig string, data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SelfModels[sig] = bbtypes.SelfModel{Data: data, TS: time.Now()}
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after store self model", "error", err)
	}
}
