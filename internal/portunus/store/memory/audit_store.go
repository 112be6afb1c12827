package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

// AuditTrailStore keeps audit events in memory, honouring ExpireAt the same
// way the Postgres backend does.
type AuditTrailStore struct {
	retention time.Duration
	clock     clock.Clock

	mu     sync.RWMutex
	events []store.AuditEvent

	indexMu      sync.Mutex
	indexesReady bool
	indexSetups  int
}

func NewAuditTrailStore(retention time.Duration, clk clock.Clock) *AuditTrailStore {
	if retention <= 0 {
		retention = store.DefaultAuditRetention
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &AuditTrailStore{retention: retention, clock: clk}
}

// EnsureIndexes has no structure to build in memory; it records that setup
// ran so callers observe the same once-only contract as the SQL backend.
func (s *AuditTrailStore) EnsureIndexes(_ context.Context) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexesReady {
		return nil
	}
	s.indexSetups++
	s.indexesReady = true
	return nil
}

func (s *AuditTrailStore) Append(ctx context.Context, ev store.AuditEvent) error {
	if err := s.EnsureIndexes(ctx); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.clock.Now()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = ev.CreatedAt
	}
	ev.ExpireAt = ev.CreatedAt.Add(s.retention)
	ev.Payload = maps.Clone(ev.Payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *AuditTrailStore) Query(ctx context.Context, q store.AuditQuery) (store.AuditPage, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return store.AuditPage{}, err
	}
	q = q.Normalize()
	matched := s.live(q.From, q.To, func(ev store.AuditEvent) bool {
		if q.UserID != nil && ev.UserID != *q.UserID {
			return false
		}
		if q.EventType != "" && ev.EventType != q.EventType {
			return false
		}
		return q.Result == "" || ev.Result == q.Result
	})

	slices.SortFunc(matched, func(a, b store.AuditEvent) int {
		c := a.Timestamp.Compare(b.Timestamp)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.Sort == store.SortDesc {
			return -c
		}
		return c
	})

	page := store.AuditPage{TotalCount: int64(len(matched)), Page: q.Page, PageSize: q.PageSize}
	if off := q.Offset(); off < len(matched) {
		end := min(off+q.PageSize, len(matched))
		page.Events = matched[off:end]
		for i := range page.Events {
			page.Events[i].Payload = maps.Clone(page.Events[i].Payload)
		}
	}
	return page, nil
}

func (s *AuditTrailStore) Aggregate(ctx context.Context, q store.AggregateQuery) (store.AuditSummary, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return store.AuditSummary{}, err
	}
	matched := s.live(q.From, q.To, nil)

	sum := store.AuditSummary{Totals: make(map[string]int64)}
	byStart := make(map[time.Time]map[string]int64)
	for _, ev := range matched {
		sum.Totals[ev.EventType]++
		start := q.BucketStart(ev.Timestamp)
		if byStart[start] == nil {
			byStart[start] = make(map[string]int64)
		}
		byStart[start][ev.EventType]++
	}

	starts := slices.SortedFunc(maps.Keys(byStart), func(a, b time.Time) int { return a.Compare(b) })
	for _, st := range starts {
		sum.Buckets = append(sum.Buckets, store.AggregateBucket{Start: st, Counts: byStart[st]})
	}
	return sum, nil
}

func (s *AuditTrailStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, ev := range s.events {
		if !ev.ExpireAt.After(now) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return n, nil
}

// live returns copies of unexpired events inside [from, to] that satisfy keep.
// Payload maps are still shared with the store.
func (s *AuditTrailStore) live(from, to time.Time, keep func(store.AuditEvent) bool) []store.AuditEvent {
	now := s.clock.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.AuditEvent
	for _, ev := range s.events {
		if !ev.ExpireAt.After(now) {
			continue
		}
		if !from.IsZero() && ev.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && ev.Timestamp.After(to) {
			continue
		}
		if keep != nil && !keep(ev) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// IndexSetups returns how many times index setup actually ran.  Test-only
// helper.
func (s *AuditTrailStore) IndexSetups() int {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.indexSetups
}

// Len returns the number of stored events, expired or not.  Test-only helper.
func (s *AuditTrailStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
