package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type BenefitStore struct {
	mu       sync.RWMutex
	benefits map[int64]store.Benefit
	reads    int
}

func NewBenefitStore(seed ...store.Benefit) *BenefitStore {
	s := &BenefitStore{benefits: make(map[int64]store.Benefit, len(seed))}
	for _, b := range seed {
		s.benefits[b.ID] = b
	}
	return s
}

func (s *BenefitStore) ListBenefits(_ context.Context) ([]store.Benefit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	out := make([]store.Benefit, 0, len(s.benefits))
	for _, b := range s.benefits {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b store.Benefit) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *BenefitStore) GetBenefit(_ context.Context, id int64) (store.Benefit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	b, ok := s.benefits[id]
	return b, ok, nil
}

func (s *BenefitStore) UpsertBenefit(_ context.Context, b store.Benefit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benefits[b.ID] = b
	return nil
}

// Reads returns how many list/get calls reached the store.  Test-only helper.
func (s *BenefitStore) Reads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reads
}
