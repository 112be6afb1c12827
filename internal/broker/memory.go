package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/metrics"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = 500 * time.Millisecond
	DefaultBuffer      = 1024
)

type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	Buffer      int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	} else if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultBuffer
	}
	return c
}

// Memory is an in-process Broker.  Each topic is a buffered channel; all
// subscriptions to a topic compete for its messages.  Messages still
// buffered when Close is called are lost.
type Memory struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Registry

	mu     sync.Mutex
	topics map[string]chan Message
	closed bool

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewMemory(cfg Config, logger *slog.Logger, reg *metrics.Registry) *Memory {
	return &Memory{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: reg,
		topics:  make(map[string]chan Message),
		stop:    make(chan struct{}),
	}
}

func (b *Memory) topic(name string) (chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan Message, b.cfg.Buffer)
		b.topics[name] = ch
	}
	return ch, nil
}

// Publish enqueues msg on topic.  It never waits for buffer space: when the
// topic buffer is full the message is dropped and ErrFull is returned.
func (b *Memory) Publish(ctx context.Context, topic string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.PublishedAt.IsZero() {
		msg.PublishedAt = time.Now().UTC()
	}
	msg.Topic = topic
	msg.Attempt = 0

	select {
	case ch <- msg:
		b.metrics.Inc("broker.published", topic)
		return nil
	case <-b.stop:
		return ErrClosed
	default:
		b.metrics.Inc("broker.dropped", topic)
		b.logger.Warn("topic buffer full, dropping message", "topic", topic, "message_id", msg.ID)
		return fmt.Errorf("publish %s: %w", topic, ErrFull)
	}
}

// Subscribe starts a delivery goroutine for topic.
func (b *Memory) Subscribe(topic string, h Handler) error {
	ch, err := b.topic(topic)
	if err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.stop:
				return
			case msg := <-ch:
				b.deliver(topic, h, msg)
			}
		}
	}()
	return nil
}

func (b *Memory) deliver(topic string, h Handler, msg Message) {
	var lastErr error
	for attempt := 1; attempt <= b.cfg.MaxAttempts; attempt++ {
		msg.Attempt = attempt
		lastErr = b.call(h, msg)
		if lastErr == nil {
			return
		}
		if IsPermanent(lastErr) {
			break
		}

		b.logger.Warn("message handler failed",
			"topic", topic, "message_id", msg.ID, "attempt", attempt, "err", lastErr)
		if attempt == b.cfg.MaxAttempts {
			break
		}
		b.metrics.Inc("broker.retried", topic)

		t := time.NewTimer(time.Duration(attempt) * b.cfg.Backoff)
		select {
		case <-t.C:
		case <-b.stop:
			t.Stop()
			return
		}
	}

	b.deadLetter(topic, msg, lastErr)
}

// call runs the handler with a context that outlives Close so an in-flight
// message finishes, converting panics into errors.
func (b *Memory) call(h Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(context.Background(), msg)
}

func (b *Memory) deadLetter(topic string, msg Message, cause error) {
	dlq := DLQTopic(topic)
	b.logger.Error("message dead-lettered",
		"topic", topic, "dlq", dlq, "message_id", msg.ID, "attempts", msg.Attempt, "err", cause)
	b.metrics.Inc("broker.dead_lettered", topic)

	ch, err := b.topic(dlq)
	if err != nil {
		return
	}
	msg.Topic = dlq
	select {
	case ch <- msg:
	default:
		b.logger.Error("dead-letter topic full, dropping message", "dlq", dlq, "message_id", msg.ID)
	}
}

// Close stops every subscription and waits for in-flight deliveries.
func (b *Memory) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
