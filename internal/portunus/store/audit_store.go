package store

import (
	"context"
	"time"
)

const (
	DefaultAuditRetention = 365 * 24 * time.Hour
	DefaultPageSize       = 50
	MaxPageSize           = 500
)

type AuditEvent struct {
	ID           string
	EventType    string
	Timestamp    time.Time
	UserID       int64
	SpaceID      *int64
	Result       string
	CheckpointID string
	Payload      map[string]any
	CreatedAt    time.Time
	ExpireAt     time.Time
}

type SortOrder string

const (
	SortDesc SortOrder = "desc"
	SortAsc  SortOrder = "asc"
)

// AuditQuery filters the audit trail.  Zero From/To leave that side of the
// range open; both bounds are inclusive.  Page is 1-based.
type AuditQuery struct {
	From      time.Time
	To        time.Time
	UserID    *int64
	EventType string
	Result    string
	Page      int
	PageSize  int
	Sort      SortOrder
}

// Normalize applies paging defaults and clamps PageSize to MaxPageSize.
func (q AuditQuery) Normalize() AuditQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize <= 0:
		q.PageSize = DefaultPageSize
	case q.PageSize > MaxPageSize:
		q.PageSize = MaxPageSize
	}
	if q.Sort != SortAsc {
		q.Sort = SortDesc
	}
	return q
}

func (q AuditQuery) Offset() int { return (q.Page - 1) * q.PageSize }

type AuditPage struct {
	Events     []AuditEvent
	TotalCount int64
	Page       int
	PageSize   int
}

// AggregateQuery groups events by type.  Bucket 0 yields a single bucket
// spanning the whole range; otherwise buckets are aligned to multiples of
// Bucket since the Unix epoch.
type AggregateQuery struct {
	From   time.Time
	To     time.Time
	Bucket time.Duration
}

type AggregateBucket struct {
	Start  time.Time
	Counts map[string]int64
}

type AuditSummary struct {
	Totals  map[string]int64
	Buckets []AggregateBucket
}

// AuditTrailStore is the append-only secondary store for denial events.
// Events past their ExpireAt are invisible to Query and Aggregate.
type AuditTrailStore interface {
	EnsureIndexes(ctx context.Context) error
	Append(ctx context.Context, ev AuditEvent) error
	Query(ctx context.Context, q AuditQuery) (AuditPage, error)
	Aggregate(ctx context.Context, q AggregateQuery) (AuditSummary, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// BucketSeconds is the bucket width in whole seconds, at least 1, or 0 for a
// single bucket.
func (q AggregateQuery) BucketSeconds() int64 {
	if q.Bucket <= 0 {
		return 0
	}
	return max(int64(q.Bucket/time.Second), 1)
}

// BucketStart returns the start of the bucket ts falls into.
func (q AggregateQuery) BucketStart(ts time.Time) time.Time {
	secs := q.BucketSeconds()
	if secs == 0 {
		return q.From
	}
	u := ts.Unix()
	u -= ((u % secs) + secs) % secs
	return time.Unix(u, 0).UTC()
}
