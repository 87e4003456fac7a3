// Package chathub runs the per-connection chat sessions and the fan-out
// bus that carries new messages between them.
package chathub

import (
	"context"
	"sync"

	"townchat/backend/internal/auth"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
)

// Manager builds sessions with their dependencies and keeps track of the
// live ones for shutdown.
type Manager struct {
	validator auth.TokenValidator
	store     Store
	bus       Bus
	cfg       SessionConfig

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closed   bool
}

// NewManager applies the defaults to cfg. The bus is owned by the caller.
func NewManager(validator auth.TokenValidator, store Store, bus Bus, cfg SessionConfig) *Manager {
	return &Manager{
		validator: validator,
		store:     store,
		bus:       bus,
		cfg:       cfg.withDefaults(),
		sessions:  make(map[*Session]struct{}),
	}
}

func (m *Manager) Config() SessionConfig { return m.cfg }

// NewSession creates a session for roomID writing to out. The session is
// in StateConnecting until Open is called. After Shutdown it returns nil.
func (m *Manager) NewSession(roomID string, out Outbox) *Session {
	s := newSession(roomID, m.cfg, m.validator, m.store, m.bus, out)
	s.onClose = m.remove

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.sessions[s] = struct{}{}
	return s
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s)
	m.mu.Unlock()
}

// Sessions returns the number of live sessions.
func (m *Manager) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PublishMessage broadcasts a message stored outside a session, such as
// the first message of a chat created over REST.
func (m *Manager) PublishMessage(ctx context.Context, msg *models.Message) error {
	return m.bus.Publish(ctx, Topic(m.cfg.TopicPrefix, msg.RoomID), BroadcastOf(msg))
}

// Shutdown closes every live session and refuses new ones.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	live := make([]*Session, 0, len(m.sessions))
	for s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	logger.Infof("Chat hub stopped, closed %d sessions", len(live))
}
