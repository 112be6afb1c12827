package store

import (
	"context"
	"time"
)

type Notification struct {
	ID            string
	UserID        int64
	Kind          string
	Title         string
	Body          string
	SourceEventID string
	CreatedAt     time.Time
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n Notification) error
	// ListNotifications returns the user's notifications, newest first.
	ListNotifications(ctx context.Context, userID int64, limit int) ([]Notification, error)
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
}
