package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const DefaultPollInterval = 250 * time.Millisecond

type HandlerFunc func(ctx context.Context, t Task) error

// Processor drains a Queue on a background goroutine, dispatching each task
// to the handler registered for its type.  Failed tasks are logged and
// dropped.
//
// Stop is cooperative: it is observed between tasks, and a task already
// running finishes with a context that is not cancelled by Stop.
type Processor struct {
	queue        *Queue
	handlers     map[string]HandlerFunc
	pollInterval time.Duration
	logger       *slog.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewProcessor(q *Queue, pollInterval time.Duration, logger *slog.Logger) *Processor {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Processor{
		queue:        q,
		handlers:     make(map[string]HandlerFunc),
		pollInterval: pollInterval,
		logger:       logger.With("queue", q.Name()),
		done:         make(chan struct{}),
	}
}

// Handle registers h for taskType.  Must be called before Start.
func (p *Processor) Handle(taskType string, h HandlerFunc) {
	p.handlers[taskType] = h
}

func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	p.logger.Info("queue processor started", "poll_interval", p.pollInterval)
}

// Stop signals the loop to exit and waits for the current task to finish.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Processor) loop(ctx context.Context) {
	defer close(p.done)

	for {
		if ctx.Err() != nil {
			return
		}

		t, ok := p.queue.Dequeue()
		if !ok {
			timer := time.NewTimer(p.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		p.run(context.WithoutCancel(ctx), t)
	}
}

func (p *Processor) run(ctx context.Context, t Task) {
	h, ok := p.handlers[t.Type]
	if !ok {
		p.logger.WarnContext(ctx, "no handler for task type", "task_id", t.ID, "type", t.Type)
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return h(ctx, t)
	}()
	if err != nil {
		p.logger.ErrorContext(ctx, "task failed", "task_id", t.ID, "type", t.Type, "err", err)
	}
}
