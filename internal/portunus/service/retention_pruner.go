package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

const (
	TaskAuditPurge       = "audit.purge_expired"
	TaskIdempotencyPurge = "idempotency.purge_expired"

	DefaultPurgeInterval = time.Hour
)

// RetentionPruner periodically schedules the purge tasks on the maintenance
// queue.  The purges themselves run on the queue's processor.
//
// An interval below zero disables the pruner.
type RetentionPruner struct {
	queue    *queue.Queue
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRetentionPruner creates a pruner but does not start it.
func NewRetentionPruner(q *queue.Queue, interval time.Duration, logger *slog.Logger) *RetentionPruner {
	if interval == 0 {
		interval = DefaultPurgeInterval
	}
	return &RetentionPruner{
		queue:    q,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start schedules an immediate purge, then repeats on the interval until
// ctx is cancelled or Stop is called.
func (p *RetentionPruner) Start(ctx context.Context) {
	if p.interval < 0 {
		p.logger.Info("retention pruner disabled")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("retention pruner started", "interval", p.interval)
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *RetentionPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *RetentionPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.schedule()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.schedule()
		}
	}
}

func (p *RetentionPruner) schedule() {
	p.queue.Enqueue(TaskAuditPurge, nil)
	p.queue.Enqueue(TaskIdempotencyPurge, nil)
}
