package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/accesscore/internal/db"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

type NotificationStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewNotificationStore(db *sql.DB, writer *dbpkg.Worker) *NotificationStore {
	return &NotificationStore{db: db, writer: writer}
}

func (s *NotificationStore) CreateNotification(ctx context.Context, n store.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	var source any
	if n.SourceEventID != "" {
		source = n.SourceEventID
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO notifications(notification_id, user_id, kind, title, body, source_event_id, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, n.ID, n.UserID, n.Kind, n.Title, n.Body, source, n.CreatedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("CreateNotification insert: %w", err)
		}
		return nil
	})
}

func (s *NotificationStore) ListNotifications(ctx context.Context, userID int64, limit int) ([]store.Notification, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT notification_id, user_id, kind, title, body, source_event_id, created_at_ms
FROM notifications
WHERE user_id = ?
ORDER BY created_at_ms DESC, notification_id DESC
LIMIT ?;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListNotifications query: %w", err)
	}
	defer rows.Close()

	var out []store.Notification
	for rows.Next() {
		var (
			n         store.Notification
			source    sql.NullString
			createdMs int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &source, &createdMs); err != nil {
			return nil, fmt.Errorf("ListNotifications scan: %w", err)
		}
		n.SourceEventID = source.String
		n.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListNotifications rows: %w", err)
	}
	return out, nil
}

func (s *NotificationStore) DeleteForUser(ctx context.Context, userID int64) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?;`, userID)
		if err != nil {
			return fmt.Errorf("DeleteForUser: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("DeleteForUser rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}
