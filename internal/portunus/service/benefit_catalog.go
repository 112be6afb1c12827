package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/cache"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/clock"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/events"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/portunus/types"
)

const benefitsAllKey = "benefits:all"

func benefitKey(id int64) string { return "benefits:" + strconv.FormatInt(id, 10) }

// BenefitCatalog serves the benefit list through the read-through cache and
// keeps it coherent on writes.
type BenefitCatalog struct {
	store     store.BenefitStore
	users     store.UserStore
	all       *cache.ReadThrough[[]store.Benefit]
	one       *cache.ReadThrough[store.Benefit]
	ttl       time.Duration
	publisher EventPublisher
	audit     AuditAppender
	clock     clock.Clock
	logger    *slog.Logger
}

type BenefitDeps struct {
	Store     store.BenefitStore
	Users     store.UserStore
	Cache     cache.Backend
	CacheTTL  time.Duration
	Publisher EventPublisher
	Audit     AuditAppender
	Metrics   *metrics.Registry
	Clock     clock.Clock
	Logger    *slog.Logger
}

func NewBenefitCatalog(d BenefitDeps) *BenefitCatalog {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	return &BenefitCatalog{
		store:     d.Store,
		users:     d.Users,
		all:       cache.NewReadThrough[[]store.Benefit](d.Cache, d.CacheTTL, d.Logger, d.Metrics),
		one:       cache.NewReadThrough[store.Benefit](d.Cache, d.CacheTTL, d.Logger, d.Metrics),
		ttl:       d.CacheTTL,
		publisher: d.Publisher,
		audit:     d.Audit,
		clock:     d.Clock,
		logger:    d.Logger,
	}
}

func (c *BenefitCatalog) List(ctx context.Context) ([]store.Benefit, error) {
	list, err := c.all.Load(ctx, benefitsAllKey, c.ttl, c.store.ListBenefits)
	if err != nil {
		return nil, &InfrastructureError{Op: "list benefits", Err: err}
	}
	return list, nil
}

func (c *BenefitCatalog) Get(ctx context.Context, id int64) (store.Benefit, error) {
	key := benefitKey(id)
	if b, ok := c.one.Get(ctx, key); ok {
		return b, nil
	}

	b, ok, err := c.store.GetBenefit(ctx, id)
	if err != nil {
		return store.Benefit{}, &InfrastructureError{Op: "get benefit", Err: err}
	}
	if !ok {
		return store.Benefit{}, fmt.Errorf("%w: %d", ErrBenefitNotFound, id)
	}
	c.one.Set(ctx, key, b, c.ttl)
	return b, nil
}

// Update writes b and invalidates the list and item entries before
// returning, so the next read observes the write.
func (c *BenefitCatalog) Update(ctx context.Context, b store.Benefit) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = c.clock.Now()
	}
	if err := c.store.UpsertBenefit(ctx, b); err != nil {
		return &InfrastructureError{Op: "update benefit", Err: err}
	}
	c.all.Invalidate(ctx, benefitsAllKey)
	c.one.Invalidate(ctx, benefitKey(b.ID))
	return nil
}

// Redeem records that userID used benefitID and emits BenefitRedeemed.
func (c *BenefitCatalog) Redeem(ctx context.Context, userID, benefitID int64) (types.Redemption, error) {
	if _, ok, err := c.users.GetUser(ctx, userID); err != nil {
		return types.Redemption{}, &InfrastructureError{Op: "get user", Err: err}
	} else if !ok {
		return types.Redemption{}, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}

	b, err := c.Get(ctx, benefitID)
	if err != nil {
		return types.Redemption{}, err
	}
	if !b.Active {
		return types.Redemption{}, fmt.Errorf("%w: %d", ErrBenefitInactive, benefitID)
	}

	now := c.clock.Now()
	ev := events.NewBenefitRedeemed(userID, benefitID, now)

	if c.audit != nil {
		if err := c.audit.Append(ctx, store.AuditEvent{
			EventType: string(events.BenefitRedeemed),
			Timestamp: now,
			UserID:    userID,
			Result:    "Redeemed",
			Payload:   map[string]any{"benefitId": benefitID, "benefitName": b.Name, "eventId": ev.ID},
		}); err != nil {
			c.logger.WarnContext(ctx, "audit append failed", "event_id", ev.ID, "err", err)
		}
	}
	if c.publisher != nil {
		c.publisher.Publish(ctx, ev)
	}

	return types.Redemption{EventID: ev.ID, UserID: userID, BenefitID: benefitID, RedeemedAt: now}, nil
}
