package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureCheckpoint guarantees a checkpoints row exists for checkpointID so
// the foreign key from access_decisions is satisfied, and bumps its
// last-seen time.
//
// Must be called inside an existing transaction.
func ensureCheckpoint(ctx context.Context, tx *sql.Tx, checkpointID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT INTO checkpoints(checkpoint_id, first_seen_at_ms, last_seen_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(checkpoint_id) DO UPDATE SET
  last_seen_at_ms = MAX(checkpoints.last_seen_at_ms, excluded.last_seen_at_ms);
`, checkpointID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureCheckpoint %s: %w", checkpointID, err)
	}
	return nil
}
