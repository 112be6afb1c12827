// Package broker defines the at-least-once message transport used by the
// domain event pipeline, and an in-process implementation of it.
package broker

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("broker closed")
	ErrFull   = errors.New("broker topic full")
)

// Message is one delivery.  Attempt is 1 on first delivery and increases
// on every retry.
type Message struct {
	ID          string
	Topic       string
	Key         string
	Payload     []byte
	Attempt     int
	PublishedAt time.Time
}

// Handler processes a message.  A nil return acknowledges it.  An error
// schedules a retry unless it is marked Permanent, in which case the message
// goes straight to the dead-letter topic.
type Handler func(ctx context.Context, msg Message) error

type Broker interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(topic string, h Handler) error
	Close() error
}

// DLQTopic names the dead-letter topic for topic.
func DLQTopic(topic string) string { return topic + ".dlq" }

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
