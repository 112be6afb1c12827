package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/accesscore/internal/db"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type IdempotencyStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIdempotencyStore(db *sql.DB, writer *dbpkg.Worker) *IdempotencyStore {
	return &IdempotencyStore{db: db, writer: writer}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string, now time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM idempotency_marks
WHERE mark_key = ? AND expires_at_ms > ?;
`, key, now.UTC().UnixMilli()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("Lookup query: %w", err)
	}
	return n > 0, nil
}

// Mark upserts the mark; a replayed key refreshes its expiry.
func (s *IdempotencyStore) Mark(ctx context.Context, m store.IdempotencyMark) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO idempotency_marks(mark_key, processed_at_ms, expires_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(mark_key) DO UPDATE SET
  processed_at_ms = excluded.processed_at_ms,
  expires_at_ms   = excluded.expires_at_ms;
`, m.Key, m.ProcessedAt.UTC().UnixMilli(), m.ExpiresAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Mark upsert: %w", err)
		}
		return nil
	})
}

func (s *IdempotencyStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM idempotency_marks WHERE expires_at_ms <= ?;`, now.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PurgeExpired delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("PurgeExpired rows affected: %w", err)
		}
		deleted = n
		return nil
	})
	return deleted, err
}
