package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/accesscore/internal/db"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type DecisionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDecisionStore(db *sql.DB, writer *dbpkg.Worker) *DecisionStore {
	return &DecisionStore{db: db, writer: writer}
}

func (s *DecisionStore) RecordDecision(ctx context.Context, rec store.AccessDecisionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("RecordDecision: empty decision id")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	decidedMs := rec.Timestamp.UTC().UnixMilli()

	var errorKind any
	if rec.ErrorKind != "" {
		errorKind = string(rec.ErrorKind)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureCheckpoint(ctx, tx, rec.CheckpointID, decidedMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_decisions(
  decision_id, user_id, space_id, checkpoint_id, result, error_kind, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.UserID, rec.SpaceID, rec.CheckpointID,
			string(rec.Result), errorKind, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordDecision insert: %w", err)
		}

		return nil
	})
}

func (s *DecisionStore) ListCheckpoints(ctx context.Context) ([]store.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT checkpoint_id, first_seen_at_ms, last_seen_at_ms
FROM checkpoints
ORDER BY checkpoint_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListCheckpoints query: %w", err)
	}
	defer rows.Close()

	var out []store.Checkpoint
	for rows.Next() {
		var (
			cp              store.Checkpoint
			firstMs, lastMs int64
		)
		if err := rows.Scan(&cp.CheckpointID, &firstMs, &lastMs); err != nil {
			return nil, fmt.Errorf("ListCheckpoints scan: %w", err)
		}
		cp.FirstSeenAt = time.UnixMilli(firstMs).UTC()
		cp.LastSeenAt = time.UnixMilli(lastMs).UTC()
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCheckpoints rows: %w", err)
	}
	return out, nil
}
