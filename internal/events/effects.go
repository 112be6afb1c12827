package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

// TaskUserCascadeCleanup is the maintenance task enqueued when a user is
// deleted.  Its payload is the user id as int64.
const TaskUserCascadeCleanup = "user.cascade_cleanup"

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, n store.Notification) error
}

// RegisterSideEffects wires the standard reactions to each event type.
func RegisterSideEffects(c *Consumer, n Notifier, maintenance *queue.Queue, reg *metrics.Registry) {
	c.On(AccessDenied, func(ctx context.Context, e Event) error {
		err := n.Notify(ctx, store.Notification{
			ID:            uuid.NewString(),
			UserID:        e.UserID,
			Kind:          string(AccessDenied),
			Title:         "Access denied",
			Body:          fmt.Sprintf("Access to space %d at %s was denied: %s", e.SpaceID, e.CheckpointID, e.Reason),
			SourceEventID: e.ID,
			CreatedAt:     e.Timestamp,
		})
		if err != nil {
			return err
		}
		reg.Inc("events.access_denied", string(e.ErrorKind))
		return nil
	})

	c.On(BenefitRedeemed, func(ctx context.Context, e Event) error {
		err := n.Notify(ctx, store.Notification{
			ID:            uuid.NewString(),
			UserID:        e.UserID,
			Kind:          string(BenefitRedeemed),
			Title:         "Benefit redeemed",
			Body:          fmt.Sprintf("Benefit %d was redeemed.", e.BenefitID),
			SourceEventID: e.ID,
			CreatedAt:     e.Timestamp,
		})
		if err != nil {
			return err
		}
		reg.Inc("events.benefit_redeemed", strconv.FormatInt(e.BenefitID, 10))
		return nil
	})

	c.On(UserDeleted, func(_ context.Context, e Event) error {
		maintenance.Enqueue(TaskUserCascadeCleanup, e.UserID)
		return nil
	})
}
