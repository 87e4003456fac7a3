package chathub

import (
	"context"
	"sync"
)

// MemoryBus delivers within one process. It backs single-node deployments
// and tests.
type MemoryBus struct {
	local *fanout

	// mu orders publishes so concurrent publishers never interleave
	// deliveries of a single event.
	mu     sync.Mutex
	closed bool
}

// NewMemoryBus returns an open bus with no subscribers.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{local: newFanout()}
}

// Subscribe registers sub for topic. Subscribing twice is a no-op.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, sub Subscriber) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}
	b.local.add(topic, sub)
	return nil
}

func (b *MemoryBus) Unsubscribe(_ context.Context, topic string, sub Subscriber) error {
	b.local.remove(topic, sub)
	return nil
}

func (b *MemoryBus) Publish(_ context.Context, topic string, ev Broadcast) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.local.deliver(topic, ev)
	return nil
}

// Subscribers returns the number of subscribers of topic.
func (b *MemoryBus) Subscribers(topic string) int {
	return b.local.count(topic)
}

// Close drops every subscriber; later calls fail with ErrBusClosed.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.local.clear()
	return nil
}
