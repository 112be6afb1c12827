package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/broker"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/idempotency"
	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
)

// SideEffect applies the consequences of one event.
type SideEffect func(ctx context.Context, e Event) error

// Consumer applies side effects at most once per idempotency key, modulo the
// window between running a side effect and recording the key.
type Consumer struct {
	guard   *idempotency.Guard
	ttl     time.Duration
	effects map[Type][]SideEffect
	logger  *slog.Logger
	metrics *metrics.Registry
}

func NewConsumer(guard *idempotency.Guard, ttl time.Duration, logger *slog.Logger, reg *metrics.Registry) *Consumer {
	return &Consumer{
		guard:   guard,
		ttl:     ttl,
		effects: make(map[Type][]SideEffect),
		logger:  logger,
		metrics: reg,
	}
}

// On registers fx for events of type t.  Effects run in registration order.
func (c *Consumer) On(t Type, fx SideEffect) {
	c.effects[t] = append(c.effects[t], fx)
}

// Subscribe attaches the consumer to the events topic.
func (c *Consumer) Subscribe(b broker.Broker) error {
	return b.Subscribe(Topic, c.Handle)
}

// Handle is the broker handler.  Malformed payloads fail permanently; a
// failing side effect returns its error so the broker retries.
func (c *Consumer) Handle(ctx context.Context, msg broker.Message) error {
	e, err := Decode(msg.Payload)
	if err != nil {
		c.metrics.Inc("events.malformed", "")
		return broker.Permanent(err)
	}

	if c.guard.IsProcessed(ctx, e.IdempotencyKey) {
		c.metrics.Inc("events.duplicate", string(e.Type))
		c.logger.DebugContext(ctx, "duplicate event skipped",
			"event_id", e.ID, "event_type", e.Type, "key", e.IdempotencyKey)
		return nil
	}

	for _, fx := range c.effects[e.Type] {
		if err := fx(ctx, e); err != nil {
			return fmt.Errorf("%s side effect: %w", e.Type, err)
		}
	}

	if err := c.guard.MarkProcessed(ctx, e.IdempotencyKey, c.ttl); err != nil {
		// Side effects already ran; retrying would repeat them.
		c.logger.WarnContext(ctx, "mark processed failed", "event_id", e.ID, "key", e.IdempotencyKey, "err", err)
	}
	c.metrics.Inc("events.consumed", string(e.Type))
	return nil
}
