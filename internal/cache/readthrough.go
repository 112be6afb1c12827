// Package cache provides a best-effort read-through cache.  A cache failure
// of any kind degrades to a miss; it never fails the caller.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
)

const (
	MetricHit          = "cache.hit"
	MetricMiss         = "cache.miss"
	MetricInvalidation = "cache.invalidation"
)

// ReadThrough caches values of type V as JSON in a Backend.
type ReadThrough[V any] struct {
	backend    Backend
	logger     *slog.Logger
	metrics    *metrics.Registry
	defaultTTL time.Duration
}

func NewReadThrough[V any](backend Backend, defaultTTL time.Duration, logger *slog.Logger, reg *metrics.Registry) *ReadThrough[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &ReadThrough[V]{backend: backend, logger: logger, metrics: reg, defaultTTL: defaultTTL}
}

// Get returns the cached value.  Backend and decode errors are logged and
// reported as a miss.
func (c *ReadThrough[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		c.metrics.Inc(MetricMiss, key)
		return zero, false
	}
	if !ok {
		c.metrics.Inc(MetricMiss, key)
		return zero, false
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "cache decode failed", "key", key, "err", err)
		c.metrics.Inc(MetricMiss, key)
		return zero, false
	}

	c.metrics.Inc(MetricHit, key)
	return v, true
}

// Set stores v under key.  ttl <= 0 uses the default TTL.
func (c *ReadThrough[V]) Set(ctx context.Context, key string, v V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "key", key, "err", err)
		return
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

func (c *ReadThrough[V]) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed", "keys", keys, "err", err)
		return
	}
	for _, k := range keys {
		c.metrics.Inc(MetricInvalidation, k)
	}
}

// Load returns the cached value or calls loader, caching its result.
// Loader errors are returned and nothing is cached.
func (c *ReadThrough[V]) Load(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := loader(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}
