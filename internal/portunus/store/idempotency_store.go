package store

import (
	"context"
	"time"
)

type IdempotencyMark struct {
	Key         string
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// IdempotencyStore is the raw backend behind the idempotency guard.  Marks
// whose ExpiresAt is not after now are treated as absent.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key string, now time.Time) (bool, error)
	Mark(ctx context.Context, m IdempotencyMark) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
