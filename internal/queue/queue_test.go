package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/accesscore/internal/queue"
)

func silentLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ── Queue ──

func TestQueue_FIFOAndBacklog(t *testing.T) {
	q := queue.New("maintenance")
	q.Enqueue("audit.purge_expired", nil)
	q.Enqueue("idempotency.purge_expired", nil)
	q.Enqueue("audit.purge_expired", nil)

	assert.Equal(t, map[string]int{"audit.purge_expired": 2, "idempotency.purge_expired": 1}, q.Backlog())

	var order []string
	for {
		task, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, task.Type)
	}
	assert.Equal(t, []string{"audit.purge_expired", "idempotency.purge_expired", "audit.purge_expired"}, order)
	assert.Empty(t, q.Backlog())
	assert.Zero(t, q.Len())
}

func TestQueue_BacklogIsACopy(t *testing.T) {
	q := queue.New("events")
	q.Enqueue("notification.push", nil)
	b := q.Backlog()
	b["notification.push"] = 99
	assert.Equal(t, 1, q.Backlog()["notification.push"])
}

// ── Processor ──

func TestProcessor_ContinuesAfterHandlerError(t *testing.T) {
	q := queue.New("events")
	p := queue.NewProcessor(q, time.Millisecond, silentLogger())

	var (
		mu   sync.Mutex
		seen []int
	)
	done := make(chan struct{})
	p.Handle("work", func(_ context.Context, task queue.Task) error {
		n := task.Payload.(int)
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
		if n == 1 {
			return errors.New("fails")
		}
		if n == 2 {
			panic("also fails")
		}
		return nil
	})

	for i := 1; i <= 3; i++ {
		q.Enqueue("work", i)
	}
	q.Enqueue("unknown", nil)

	p.Start(context.Background())
	defer p.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor stalled")
	}
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, seen)
	mu.Unlock()

	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, time.Millisecond)
}

func TestProcessor_InFlightTaskOutlivesStop(t *testing.T) {
	q := queue.New("maintenance")
	p := queue.NewProcessor(q, time.Millisecond, silentLogger())

	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr error
	p.Handle("slow", func(ctx context.Context, _ queue.Task) error {
		close(started)
		<-release
		ctxErr = ctx.Err()
		return nil
	})
	q.Enqueue("slow", nil)
	q.Enqueue("slow", nil)

	p.Start(context.Background())
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a task was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the task finished")
	}

	assert.NoError(t, ctxErr, "in-flight task must not see cancellation")
	assert.Equal(t, 1, q.Len(), "second task stays queued after shutdown")
}
