// Package idempotency records which domain events have already had their
// side effects applied.
package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

const DefaultTTL = 7 * 24 * time.Hour

type Guard struct {
	store      store.IdempotencyStore
	clock      clock.Clock
	logger     *slog.Logger
	defaultTTL time.Duration
}

func NewGuard(s store.IdempotencyStore, defaultTTL time.Duration, clk clock.Clock, logger *slog.Logger) *Guard {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Guard{store: s, clock: clk, logger: logger, defaultTTL: defaultTTL}
}

// IsProcessed reports whether key has been marked and not yet expired.  It
// fails open: a backend error is logged and reported as not processed, so
// the event is handled again rather than lost.
func (g *Guard) IsProcessed(ctx context.Context, key string) bool {
	ok, err := g.store.Lookup(ctx, key, g.clock.Now())
	if err != nil {
		g.logger.WarnContext(ctx, "idempotency lookup failed, treating as unprocessed", "key", key, "err", err)
		return false
	}
	return ok
}

// MarkProcessed records key.  ttl <= 0 uses the guard's default.
func (g *Guard) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = g.defaultTTL
	}
	now := g.clock.Now()
	return g.store.Mark(ctx, store.IdempotencyMark{Key: key, ProcessedAt: now, ExpiresAt: now.Add(ttl)})
}

func (g *Guard) PurgeExpired(ctx context.Context) (int64, error) {
	return g.store.PurgeExpired(ctx, g.clock.Now())
}
