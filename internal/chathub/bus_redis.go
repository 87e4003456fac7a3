package chathub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
)

// OpenRedis creates a client and checks the connection.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect Redis: %w", err)
	}
	return rdb, nil
}

// RedisBus fans out over Redis PUBLISH/SUBSCRIBE, one channel per topic.
// Each process holds a single subscription connection; its listener
// goroutine hands incoming events to the local subscribers in the order
// Redis delivers them.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub
	local  *fanout
	node   string

	// mu serializes the first-subscribe and last-unsubscribe transitions
	// of a topic with the Redis commands that follow them.
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewRedisBus starts the listener. node identifies this process in
// published envelopes.
func NewRedisBus(ctx context.Context, client *redis.Client, node string) *RedisBus {
	b := &RedisBus{
		client: client,
		pubsub: client.Subscribe(ctx),
		local:  newFanout(),
		node:   node,
		done:   make(chan struct{}),
	}
	go b.listen()
	return b
}

func (b *RedisBus) listen() {
	defer close(b.done)

	for msg := range b.pubsub.Channel() {
		env, err := decodeEnvelope([]byte(msg.Payload))
		if err != nil {
			logger.Errorf("Error decoding bus envelope on %s: %v", msg.Channel, err)
			continue
		}
		n := b.local.deliver(msg.Channel, env.Event)
		logger.Debugf("Bus event %s from %s delivered to %d sessions", env.Event.ID, env.Origin, n)
	}
}

// Subscribe adds sub locally and SUBSCRIBEs to the channel for the first
// local subscriber of topic.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	if !b.local.add(topic, sub) {
		return nil
	}
	if err := b.pubsub.Subscribe(ctx, topic); err != nil {
		b.local.remove(topic, sub)
		return fmt.Errorf("redis subscribe %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe drops the Redis channel with its last local subscriber.
func (b *RedisBus) Unsubscribe(ctx context.Context, topic string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, last := b.local.remove(topic, sub); last {
		if err := b.pubsub.Unsubscribe(ctx, topic); err != nil {
			return fmt.Errorf("redis unsubscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (b *RedisBus) Publish(ctx context.Context, topic string, ev Broadcast) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := encodeEnvelope(envelope{Topic: topic, Event: ev, Origin: b.node})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, topic, payload).Err()
}

// Close stops the listener. The Redis client itself is owned by the caller.
func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		err = b.pubsub.Close()
		<-b.done
		b.local.clear()
	})
	return err
}
