package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
)

// UserDirectory handles the user lifecycle events the access core reacts
// to.  User creation and editing happen elsewhere.
type UserDirectory struct {
	users     store.UserStore
	publisher EventPublisher
	clock     clock.Clock
	logger    *slog.Logger
}

func NewUserDirectory(users store.UserStore, pub EventPublisher, clk clock.Clock, logger *slog.Logger) *UserDirectory {
	if clk == nil {
		clk = clock.Real()
	}
	return &UserDirectory{users: users, publisher: pub, clock: clk, logger: logger}
}

// DeleteUser removes the user and publishes UserDeleted so dependent data
// is cleaned up asynchronously.
func (d *UserDirectory) DeleteUser(ctx context.Context, userID int64) error {
	deleted, err := d.users.DeleteUser(ctx, userID)
	if err != nil {
		return &InfrastructureError{Op: "delete user", Err: err}
	}
	if !deleted {
		return fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}
	d.logger.InfoContext(ctx, "user deleted", "user_id", userID)
	d.publisher.Publish(ctx, events.NewUserDeleted(userID, d.clock.Now()))
	return nil
}
