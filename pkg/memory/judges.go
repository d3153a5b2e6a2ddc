package memory

// BumpJudge adjusts a judge's stored weight by delta, clamped to [0.1, 3.0].
// Initial weight is 1.0 for a judge not yet seen.
func (s *Store) BumpJudge(judge string, delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data.Judges[judge]
	if !ok {
		rec = JudgeRecord{Weight: 1.0}
	}
	w := rec.Weight + delta
	if w < 0.1 {
		w = 0.1
	}
	if w > 3.0 {
		w = 3.0
	}
	rec.Weight = w
	s.data.Judges[judge] = rec
	s.log.Debug("memory: judge weight adjusted", "judge", judge, "delta", delta, "weight", w)
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after judge bump", "error", err)
	}
}

// GetJudgeWeight returns the stored weight for judge, or 1.0 if unseen.
func (s *Store) GetJudgeWeight(judge string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.data.Judges[judge]; ok {
		return rec.Weight
	}
	return 1.0
}

// RecordPatch increments the ok/fail counter for a patch kind. Informational
// only; never read by the planner or executor.
func (s *Store) RecordPatch(kind string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.data.PatchStats[kind]
	if ok {
		rec.OK++
	} else {
		rec.Fail++
	}
	s.data.PatchStats[kind] = rec
	if err := s.save(); err != nil {
		s.log.Error("memory: save failed after patch record", "error", err)
	}
}
