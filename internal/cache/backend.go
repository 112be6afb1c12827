package cache

import (
	"context"
	"time"
)

// Backend stores serialized values.  Implementations may be remote, so every
// call takes a context and may fail.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryBackend is an in-process Backend over a TTLMap.
type MemoryBackend struct {
	m *TTLMap[string, []byte]
}

func NewMemoryBackend(opts ...Option[string, []byte]) *MemoryBackend {
	return &MemoryBackend{m: NewTTLMap(opts...)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.m.Get(key)
	return v, ok, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.m.Set(key, value, ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		b.m.Delete(k)
	}
	return nil
}

func (b *MemoryBackend) Close() { b.m.Stop() }
