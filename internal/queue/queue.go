// Package queue is a lightweight in-process task queue used for fan-out and
// maintenance work that does not need the durable broker.
package queue

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID         string
	Type       string
	Payload    any
	EnqueuedAt time.Time
}

// Queue is a named FIFO with per-type backlog counters.
type Queue struct {
	name string

	mu      sync.Mutex
	items   []Task
	backlog map[string]int
}

func New(name string) *Queue {
	return &Queue{name: name, backlog: make(map[string]int)}
}

func (q *Queue) Name() string { return q.name }

// Enqueue appends a task of the given type and returns it.
func (q *Queue) Enqueue(taskType string, payload any) Task {
	t := Task{ID: uuid.NewString(), Type: taskType, Payload: payload, EnqueuedAt: time.Now().UTC()}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	q.backlog[taskType]++
	return t
}

// Dequeue pops the oldest task.
func (q *Queue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items[0] = Task{}
	q.items = q.items[1:]

	if q.backlog[t.Type]--; q.backlog[t.Type] <= 0 {
		delete(q.backlog, t.Type)
	}
	return t, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Backlog returns the number of pending tasks per type.
func (q *Queue) Backlog() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return maps.Clone(q.backlog)
}
