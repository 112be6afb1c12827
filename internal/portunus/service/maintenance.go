package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/idempotency"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

// AuditPurger deletes audit events whose retention has elapsed.
type AuditPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserDataCleaner removes data that belongs to a deleted user.
type UserDataCleaner interface {
	DeleteForUser(ctx context.Context, userID int64) (int64, error)
}

type MaintenanceDeps struct {
	Audit         AuditPurger
	Idempotency   *idempotency.Guard
	Notifications UserDataCleaner
	Clock         clock.Clock
	Logger        *slog.Logger
}

// RegisterMaintenanceTasks installs the handlers for every task the
// maintenance queue carries.
func RegisterMaintenanceTasks(p *queue.Processor, d MaintenanceDeps) {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}

	p.Handle(TaskAuditPurge, func(ctx context.Context, _ queue.Task) error {
		n, err := d.Audit.PurgeExpired(ctx, d.Clock.Now())
		if err != nil {
			return fmt.Errorf("purge audit: %w", err)
		}
		if n > 0 {
			d.Logger.InfoContext(ctx, "purged expired audit events", "count", n)
		}
		return nil
	})

	p.Handle(TaskIdempotencyPurge, func(ctx context.Context, _ queue.Task) error {
		n, err := d.Idempotency.PurgeExpired(ctx)
		if err != nil {
			return fmt.Errorf("purge idempotency marks: %w", err)
		}
		if n > 0 {
			d.Logger.InfoContext(ctx, "purged expired idempotency marks", "count", n)
		}
		return nil
	})

	p.Handle(events.TaskUserCascadeCleanup, func(ctx context.Context, t queue.Task) error {
		userID, ok := t.Payload.(int64)
		if !ok {
			return fmt.Errorf("cascade cleanup: payload %T is not a user id", t.Payload)
		}
		n, err := d.Notifications.DeleteForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("cascade cleanup user %d: %w", userID, err)
		}
		d.Logger.InfoContext(ctx, "user data removed", "user_id", userID, "notifications", n)
		return nil
	})
}
