package cache

import (
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
	permanent bool
}

// TTLMap is a thread-safe map whose entries expire.  Expired entries are
// invisible to Get and reclaimed by a background cleanup loop.
type TTLMap[K comparable, V any] struct {
	mu              sync.RWMutex
	items           map[K]entry[V]
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	clock           clock.Clock
	stopOnce        sync.Once
	stop            chan struct{}
}

type Option[K comparable, V any] func(*TTLMap[K, V])

func WithDefaultTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(m *TTLMap[K, V]) { m.defaultTTL = ttl }
}

func WithCleanupInterval[K comparable, V any](d time.Duration) Option[K, V] {
	return func(m *TTLMap[K, V]) { m.cleanupInterval = d }
}

func WithClock[K comparable, V any](c clock.Clock) Option[K, V] {
	return func(m *TTLMap[K, V]) { m.clock = c }
}

func NewTTLMap[K comparable, V any](opts ...Option[K, V]) *TTLMap[K, V] {
	m := &TTLMap[K, V]{
		items:           make(map[K]entry[V]),
		defaultTTL:      DefaultTTL,
		cleanupInterval: DefaultCleanupInterval,
		clock:           clock.Real(),
		stop:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.cleanupLoop()
	return m
}

// Set stores value under key.  A ttl of 0 uses the default; a negative ttl
// never expires.
func (m *TTLMap[K, V]) Set(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	switch {
	case ttl < 0:
		e.permanent = true
	case ttl == 0:
		e.expiresAt = m.clock.Now().Add(m.defaultTTL)
	default:
		e.expiresAt = m.clock.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[key] = e
	m.mu.Unlock()
}

func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || (!e.permanent && !m.clock.Now().Before(e.expiresAt)) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet reclaimed.
func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Stop terminates the cleanup goroutine.  Safe to call more than once.
func (m *TTLMap[K, V]) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *TTLMap[K, V]) cleanupLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.DeleteExpired()
		case <-m.stop:
			return
		}
	}
}

// DeleteExpired reclaims every expired entry now.
func (m *TTLMap[K, V]) DeleteExpired() {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, e := range m.items {
		if !e.permanent && !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
	}
}
