package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type NotificationStore struct {
	mu    sync.Mutex
	items []store.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) CreateNotification(_ context.Context, n store.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

func (s *NotificationStore) ListNotifications(_ context.Context, userID int64, limit int) ([]store.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Notification
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].UserID != userID {
			continue
		}
		out = append(out, s.items[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *NotificationStore) DeleteForUser(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0]
	var n int64
	for _, it := range s.items {
		if it.UserID == userID {
			n++
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	return n, nil
}

// All returns a copy of every stored notification.  Test-only helper.
func (s *NotificationStore) All() []store.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Notification, len(s.items))
	copy(out, s.items)
	return out
}
