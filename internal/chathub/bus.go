package chathub

import (
	"context"
	"errors"
	"sync"

	"townchat/backend/internal/config"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("bus closed")

// Subscriber receives broadcasts for the topics it subscribed to. Deliver is
// called from the bus's delivery goroutine and must not block.
type Subscriber interface {
	Deliver(ev Broadcast)
}

// Bus fans room events out to every subscribed session, including sessions
// on other nodes when the backend is shared. Delivery is best effort: a
// subscriber that is not subscribed at publish time never sees the event.
// Events published by one process reach each subscriber in publish order.
type Bus interface {
	Subscribe(ctx context.Context, topic string, sub Subscriber) error
	// Unsubscribe is a no-op if sub is not subscribed to topic.
	Unsubscribe(ctx context.Context, topic string, sub Subscriber) error
	Publish(ctx context.Context, topic string, ev Broadcast) error
	Close() error
}

// Topic returns the bus topic of a room.
func Topic(prefix, roomID string) string {
	if prefix == "" {
		prefix = config.DefaultTopicPrefix
	}
	return prefix + roomID
}

// fanout is the per-process subscription table shared by all backends.
type fanout struct {
	mu     sync.RWMutex
	topics map[string]map[Subscriber]struct{}
}

func newFanout() *fanout {
	return &fanout{topics: make(map[string]map[Subscriber]struct{})}
}

// add registers sub and reports whether it is the first local subscriber of
// topic.
func (f *fanout) add(topic string, sub Subscriber) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs, ok := f.topics[topic]
	if !ok {
		subs = make(map[Subscriber]struct{})
		f.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return !ok
}

// remove unregisters sub. removed is false when sub was not registered;
// last is true when topic has no local subscribers left.
func (f *fanout) remove(topic string, sub Subscriber) (removed, last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs, ok := f.topics[topic]
	if !ok {
		return false, false
	}
	if _, ok := subs[sub]; !ok {
		return false, false
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(f.topics, topic)
		return true, true
	}
	return true, false
}

// deliver hands ev to a snapshot of topic's subscribers. The lock is not
// held while subscribers run.
func (f *fanout) deliver(topic string, ev Broadcast) int {
	f.mu.RLock()
	subs := make([]Subscriber, 0, len(f.topics[topic]))
	for sub := range f.topics[topic] {
		subs = append(subs, sub)
	}
	f.mu.RUnlock()

	for _, sub := range subs {
		sub.Deliver(ev)
	}
	return len(subs)
}

func (f *fanout) count(topic string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.topics[topic])
}

func (f *fanout) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = make(map[string]map[Subscriber]struct{})
}
