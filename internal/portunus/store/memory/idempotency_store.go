package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type IdempotencyStore struct {
	mu    sync.RWMutex
	marks map[string]store.IdempotencyMark
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{marks: make(map[string]store.IdempotencyMark)}
}

func (s *IdempotencyStore) Lookup(_ context.Context, key string, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.marks[key]
	return ok && m.ExpiresAt.After(now), nil
}

func (s *IdempotencyStore) Mark(_ context.Context, m store.IdempotencyMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[m.Key] = m
	return nil
}

func (s *IdempotencyStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, m := range s.marks {
		if !m.ExpiresAt.After(now) {
			delete(s.marks, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored marks, expired or not.  Test-only helper.
func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.marks)
}
