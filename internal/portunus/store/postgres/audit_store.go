// Package postgres implements the audit trail on PostgreSQL.  Event payloads
// are kept as JSONB and expiry is enforced at read time, with physical
// removal left to PurgeExpired.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

const queryTimeout = 3 * time.Second

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

type AuditTrailStore struct {
	db        DB
	retention time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	indexMu      sync.Mutex
	indexesReady bool
}

func NewAuditTrailStore(db DB, retention time.Duration, clk clock.Clock, logger *slog.Logger) *AuditTrailStore {
	if retention <= 0 {
		retention = store.DefaultAuditRetention
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &AuditTrailStore{db: db, retention: retention, clock: clk, logger: logger}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
  id            TEXT        PRIMARY KEY,
  event_type    TEXT        NOT NULL,
  ts            TIMESTAMPTZ NOT NULL,
  user_id       BIGINT      NOT NULL,
  space_id      BIGINT,
  result        TEXT        NOT NULL,
  checkpoint_id TEXT,
  payload       JSONB       NOT NULL DEFAULT '{}'::jsonb,
  created_at    TIMESTAMPTZ NOT NULL,
  expire_at     TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_expire_at_idx ON audit_events (expire_at)`,
	`CREATE INDEX IF NOT EXISTS audit_events_user_ts_idx ON audit_events (user_id, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS audit_events_type_ts_idx ON audit_events (event_type, ts DESC)`,
}

// EnsureIndexes creates the table and its indexes once per process.  A
// failed attempt is retried on the next call.
func (s *AuditTrailStore) EnsureIndexes(ctx context.Context) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexesReady {
		return nil
	}

	for _, stmt := range schemaStatements {
		ctx, cancel := context.WithTimeout(ctx, queryTimeout)
		_, err := s.db.Exec(ctx, stmt)
		cancel()
		if err != nil {
			return fmt.Errorf("EnsureIndexes: %w", err)
		}
	}
	s.indexesReady = true
	s.logger.Info("audit trail indexes ready")
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

	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Append marshal payload: %w", err)
	}

	var checkpoint any
	if ev.CheckpointID != "" {
		checkpoint = ev.CheckpointID
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := s.db.Exec(ctx, `
INSERT INTO audit_events (id, event_type, ts, user_id, space_id, result, checkpoint_id, payload, created_at, expire_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.ID, ev.EventType, ev.Timestamp.UTC(), ev.UserID, ev.SpaceID, ev.Result,
		checkpoint, raw, ev.CreatedAt.UTC(), ev.ExpireAt.UTC(),
	); err != nil {
		return fmt.Errorf("Append insert %s: %w", ev.ID, err)
	}
	return nil
}

func (s *AuditTrailStore) Query(ctx context.Context, q store.AuditQuery) (store.AuditPage, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return store.AuditPage{}, err
	}
	q = q.Normalize()
	where, args := buildAuditFilter(q.From, q.To, q.UserID, q.EventType, q.Result, s.clock.Now())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	page := store.AuditPage{Page: q.Page, PageSize: q.PageSize}
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&page.TotalCount); err != nil {
		return store.AuditPage{}, fmt.Errorf("Query count: %w", err)
	}

	sql := fmt.Sprintf(`
SELECT id, event_type, ts, user_id, space_id, result, checkpoint_id, payload, created_at, expire_at
FROM audit_events
WHERE %s
ORDER BY %s
LIMIT $%d OFFSET $%d`, where, orderBy(q.Sort), len(args)+1, len(args)+2)
	args = append(args, q.PageSize, q.Offset())

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return store.AuditPage{}, fmt.Errorf("Query select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanAuditEvent(rows)
		if err != nil {
			return store.AuditPage{}, fmt.Errorf("Query scan: %w", err)
		}
		page.Events = append(page.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return store.AuditPage{}, fmt.Errorf("Query rows: %w", err)
	}
	return page, nil
}

func (s *AuditTrailStore) Aggregate(ctx context.Context, q store.AggregateQuery) (store.AuditSummary, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return store.AuditSummary{}, err
	}
	where, args := buildAuditFilter(q.From, q.To, nil, "", "", s.clock.Now())

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	secs := q.BucketSeconds()
	var sql string
	if secs == 0 {
		sql = "SELECT event_type, COUNT(*) FROM audit_events WHERE " + where + " GROUP BY event_type"
	} else {
		sql = fmt.Sprintf(`
SELECT to_timestamp(floor(extract(epoch FROM ts) / $%[1]d::bigint) * $%[1]d::bigint) AS bucket, event_type, COUNT(*)
FROM audit_events
WHERE %[2]s
GROUP BY bucket, event_type
ORDER BY bucket`, len(args)+1, where)
		args = append(args, secs)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return store.AuditSummary{}, fmt.Errorf("Aggregate query: %w", err)
	}
	defer rows.Close()

	sum := store.AuditSummary{Totals: make(map[string]int64)}
	for rows.Next() {
		var (
			bucket    time.Time
			eventType string
			count     int64
		)
		if secs == 0 {
			err = rows.Scan(&eventType, &count)
			bucket = q.From
		} else {
			err = rows.Scan(&bucket, &eventType, &count)
		}
		if err != nil {
			return store.AuditSummary{}, fmt.Errorf("Aggregate scan: %w", err)
		}

		sum.Totals[eventType] += count
		bucket = bucket.UTC()
		if n := len(sum.Buckets); n == 0 || !sum.Buckets[n-1].Start.Equal(bucket) {
			sum.Buckets = append(sum.Buckets, store.AggregateBucket{Start: bucket, Counts: make(map[string]int64)})
		}
		sum.Buckets[len(sum.Buckets)-1].Counts[eventType] += count
	}
	if err := rows.Err(); err != nil {
		return store.AuditSummary{}, fmt.Errorf("Aggregate rows: %w", err)
	}
	return sum, nil
}

func (s *AuditTrailStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := s.EnsureIndexes(ctx); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	tag, err := s.db.Exec(ctx, "DELETE FROM audit_events WHERE expire_at <= $1", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("PurgeExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}

// buildAuditFilter renders the WHERE clause shared by Query and Aggregate.
// Placeholders are numbered from $1 in the order of the returned args.
func buildAuditFilter(from, to time.Time, userID *int64, eventType, result string, now time.Time) (string, []any) {
	conds := []string{"expire_at > $1"}
	args := []any{now.UTC()}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !from.IsZero() {
		add("ts >= $%d", from.UTC())
	}
	if !to.IsZero() {
		add("ts <= $%d", to.UTC())
	}
	if userID != nil {
		add("user_id = $%d", *userID)
	}
	if eventType != "" {
		add("event_type = $%d", eventType)
	}
	if result != "" {
		add("result = $%d", result)
	}

	where := conds[0]
	for _, c := range conds[1:] {
		where += " AND " + c
	}
	return where, args
}

func orderBy(sort store.SortOrder) string {
	if sort == store.SortAsc {
		return "ts ASC, id ASC"
	}
	return "ts DESC, id DESC"
}

func scanAuditEvent(row pgx.Row) (store.AuditEvent, error) {
	var (
		ev         store.AuditEvent
		checkpoint *string
		raw        []byte
	)
	if err := row.Scan(&ev.ID, &ev.EventType, &ev.Timestamp, &ev.UserID, &ev.SpaceID, &ev.Result,
		&checkpoint, &raw, &ev.CreatedAt, &ev.ExpireAt); err != nil {
		return store.AuditEvent{}, err
	}
	if checkpoint != nil {
		ev.CheckpointID = *checkpoint
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ev.Payload); err != nil {
			return store.AuditEvent{}, fmt.Errorf("payload: %w", err)
		}
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.CreatedAt = ev.CreatedAt.UTC()
	ev.ExpireAt = ev.ExpireAt.UTC()
	return ev, nil
}
