package chathub

import "errors"

var (
	// ErrOutboxClosed is returned by Send after Close.
	ErrOutboxClosed = errors.New("outbox closed")
	// ErrSlowConsumer is returned when the client does not drain its
	// queue fast enough; the connection is closed.
	ErrSlowConsumer = errors.New("slow consumer")
)

// Outbox is the sending half of a client connection.
type Outbox interface {
	// Send queues one event without blocking.
	Send(event any) error
	// Close flushes queued events and closes the connection. Safe to call
	// more than once and from any goroutine.
	Close()
}
