// Package bus provides a publish/subscribe event bus for progress and
// refresh notifications. The default implementation is in-memory; a
// NATS-backed one is available when events should cross processes.
package bus

import (
	"context"
	"errors"
)

// Well-known subjects. Wildcards work against these: "lockey.bulk.*"
// matches every bulk event, "lockey.>" matches everything.
const (
	SubjectBulkPage         = "lockey.bulk.page"
	SubjectBulkDone         = "lockey.bulk.done"
	SubjectDatasetRefreshed = "lockey.dataset.refreshed"
	SubjectFileChanged      = "lockey.watch.changed"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus or subscription closed")

// MessageBus is the event transport. Implementations must be safe for
// concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for message delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The handler is called in a separate goroutine for each message.
	// Supports wildcards: "lockey.bulk.*" matches "lockey.bulk.page".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(msg *Message)

// Message represents an incoming message from the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription represents an active subscription that can be cancelled.
type Subscription interface {
	// Unsubscribe stops receiving messages and cleans up resources.
	Unsubscribe() error

	// Subject returns the subject pattern this subscription is for.
	Subject() string
}
