package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

// DecisionStore is an in-memory append-only log of decision records that
// also tracks the checkpoints it has seen.
type DecisionStore struct {
	mu          sync.Mutex
	records     []store.AccessDecisionRecord
	checkpoints map[string]store.Checkpoint
}

func NewDecisionStore() *DecisionStore {
	return &DecisionStore{checkpoints: make(map[string]store.Checkpoint)}
}

func (s *DecisionStore) RecordDecision(_ context.Context, rec store.AccessDecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)

	cp, ok := s.checkpoints[rec.CheckpointID]
	if !ok {
		cp = store.Checkpoint{CheckpointID: rec.CheckpointID, FirstSeenAt: rec.Timestamp}
	}
	cp.LastSeenAt = rec.Timestamp
	s.checkpoints[rec.CheckpointID] = cp
	return nil
}

func (s *DecisionStore) ListCheckpoints(_ context.Context) ([]store.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Checkpoint, 0, len(s.checkpoints))
	for _, cp := range s.checkpoints {
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b store.Checkpoint) int {
		return strings.Compare(a.CheckpointID, b.CheckpointID)
	})
	return out, nil
}

// Decisions returns a copy of all recorded decisions.  Test-only helper.
func (s *DecisionStore) Decisions() []store.AccessDecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessDecisionRecord, len(s.records))
	copy(out, s.records)
	return out
}
