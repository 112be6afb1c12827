package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/cache"
)

// idleLimiterTTL is how long a checkpoint's limiter survives without
// traffic before its bucket is forgotten.
const idleLimiterTTL = 10 * time.Minute

type RateLimit struct {
	PerSecond float64
	Burst     int
}

// checkpointLimiter keeps one token bucket per checkpoint id.  A zero
// PerSecond disables limiting.
type checkpointLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets *cache.TTLMap[string, *rate.Limiter]
}

func newCheckpointLimiter(cfg RateLimit) *checkpointLimiter {
	l := &checkpointLimiter{limit: rate.Limit(cfg.PerSecond), burst: cfg.Burst}
	if cfg.PerSecond <= 0 {
		return l
	}
	if l.burst <= 0 {
		l.burst = 1
	}
	l.buckets = cache.NewTTLMap(
		cache.WithDefaultTTL[string, *rate.Limiter](idleLimiterTTL),
		cache.WithCleanupInterval[string, *rate.Limiter](time.Minute),
	)
	return l
}

func (l *checkpointLimiter) Allow(checkpointID string) bool {
	if l.buckets == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets.Get(checkpointID)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Refresh the idle deadline on every request.
	l.buckets.Set(checkpointID, lim, 0)
	return lim.Allow()
}

func (l *checkpointLimiter) Stop() {
	if l.buckets != nil {
		l.buckets.Stop()
	}
}
