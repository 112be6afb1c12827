// Package notify stores user notifications and pushes them to connected
// websocket clients.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

// TaskPush is the events-queue task that delivers a stored notification to
// live clients.  Its payload is a store.Notification.
const TaskPush = "notification.push"

type Notifier struct {
	store  store.NotificationStore
	events *queue.Queue
	logger *slog.Logger
}

func NewNotifier(s store.NotificationStore, events *queue.Queue, logger *slog.Logger) *Notifier {
	return &Notifier{store: s, events: events, logger: logger}
}

// Notify persists n and schedules its push.  Only the store write can fail.
func (n *Notifier) Notify(ctx context.Context, notif store.Notification) error {
	if notif.ID == "" {
		notif.ID = uuid.NewString()
	}
	if notif.CreatedAt.IsZero() {
		notif.CreatedAt = time.Now().UTC()
	}
	if err := n.store.CreateNotification(ctx, notif); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	n.events.Enqueue(TaskPush, notif)
	return nil
}

// PushHandler returns the events-queue handler that fans a notification out
// to the user's websocket clients.  A user with no open connection is not an
// error; the notification stays in the store.
func PushHandler(h *Hub, logger *slog.Logger) queue.HandlerFunc {
	return func(ctx context.Context, t queue.Task) error {
		notif, ok := t.Payload.(store.Notification)
		if !ok {
			return fmt.Errorf("notification.push: unexpected payload %T", t.Payload)
		}
		delivered := h.SendToUser(notif.UserID, "notification", NewMessage(notif))
		logger.DebugContext(ctx, "notification pushed",
			"notification_id", notif.ID, "user_id", notif.UserID, "clients", delivered)
		return nil
	}
}

// NotificationMessage is the websocket payload for one notification.
type NotificationMessage struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Title         string `json:"title"`
	Body          string `json:"body,omitempty"`
	SourceEventID string `json:"sourceEventId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func NewMessage(n store.Notification) NotificationMessage {
	return NotificationMessage{
		ID:            n.ID,
		Kind:          n.Kind,
		Title:         n.Title,
		Body:          n.Body,
		SourceEventID: n.SourceEventID,
		CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
