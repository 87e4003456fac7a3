package chathub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
)

// ConnectNats dials NATS with unlimited reconnects.
func ConnectNats(cfg config.NatsConfig, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warningf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect NATS: %w", err)
	}
	return nc, nil
}

// NatsBus fans out over core NATS, one subject per topic. NATS calls each
// subscription's handler sequentially, which keeps per-publisher order.
type NatsBus struct {
	conn  *nats.Conn
	local *fanout
	node  string

	mu     sync.Mutex
	subs   map[string]*nats.Subscription
	closed bool
}

// NewNatsBus wraps an established connection. node tags outgoing envelopes.
func NewNatsBus(conn *nats.Conn, node string) *NatsBus {
	return &NatsBus{
		conn:  conn,
		local: newFanout(),
		node:  node,
		subs:  make(map[string]*nats.Subscription),
	}
}

// Subscribe opens the subject for topic on first use.
func (b *NatsBus) Subscribe(_ context.Context, topic string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if !b.local.add(topic, sub) {
		return nil
	}

	s, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		env, err := decodeEnvelope(msg.Data)
		if err != nil {
			logger.Errorf("Error decoding bus envelope on %s: %v", msg.Subject, err)
			return
		}
		b.local.deliver(msg.Subject, env.Event)
	})
	if err != nil {
		b.local.remove(topic, sub)
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	b.subs[topic] = s
	return nil
}

func (b *NatsBus) Unsubscribe(_ context.Context, topic string, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, last := b.local.remove(topic, sub); !last {
		return nil
	}
	s, ok := b.subs[topic]
	if !ok {
		return nil
	}
	delete(b.subs, topic)
	return s.Unsubscribe()
}

func (b *NatsBus) Publish(_ context.Context, topic string, ev Broadcast) error {
	payload, err := encodeEnvelope(envelope{Topic: topic, Event: ev, Origin: b.node})
	if err != nil {
		return err
	}
	return b.conn.Publish(topic, payload)
}

// Close drops all subscriptions and drains the connection.
func (b *NatsBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, s := range b.subs {
		if err := s.Unsubscribe(); err != nil {
			logger.Warningf("NATS unsubscribe %s: %v", topic, err)
		}
	}
	b.subs = make(map[string]*nats.Subscription)
	b.local.clear()
	return b.conn.Drain()
}
