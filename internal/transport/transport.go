// Package transport defines the boundary between the detection pipeline and
// the message bus and event store that carry its events.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Message is one event as delivered by a subscription or a history query
type Message struct {
	Topic         string
	Data          []byte
	SchemaName    string
	SchemaVersion string
	CreatedAt     time.Time
}

// Handler processes one message. Handlers are called serially, in arrival
// order.
type Handler func(ctx context.Context, msg Message) error

// Publisher publishes payloads to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, schemaName, schemaVersion string) error
	Close() error
}

// Subscriber delivers a topic's messages to a handler until ctx is canceled
// or the transport closes. A handler error stops the subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handle Handler) error
	Close() error
}

// Querier replays persisted messages for a topic in a deterministic order
type Querier interface {
	Query(ctx context.Context, topic string, visit Handler) error
}

// Appender persists a message for later replay
type Appender interface {
	Append(ctx context.Context, msg Message) error
}

// Store is a queryable event store
type Store interface {
	Appender
	Querier
	Close() error
}

// Error is a failure of the underlying bus or store
type Error struct {
	Op    string
	Topic string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %q: %v", e.Op, e.Topic, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err as an *Error unless it is nil or already one
func Wrap(op, topic string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Op: op, Topic: topic, Err: err}
}
