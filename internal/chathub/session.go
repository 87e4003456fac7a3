package chathub

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/auth"
	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
	"townchat/backend/internal/storage"
)

// State of a session. Transitions only move forward:
// Connecting -> Unauthenticated -> Authenticated -> Closed, and any state
// may jump to Closed.
type State int32

const (
	StateConnecting State = iota
	StateUnauthenticated
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Store is the storage a session works against.
type Store interface {
	ResolveRoom(ctx context.Context, roomID string) (*models.Room, error)
	IsParticipant(room *models.Room, identity string) bool
	AppendMessage(ctx context.Context, roomID, senderID string, typ models.MessageType, content string) (*models.Message, error)
	PageMessages(ctx context.Context, roomID string, q storage.PageQuery) (*storage.Page, error)
	AdvanceMessageStatus(ctx context.Context, roomID, messageID string, status models.MessageStatus) (*models.Message, error)
	SignDocument(ctx context.Context, documentID, signerID string) (*models.SigningStatus, error)
}

// SessionConfig holds the per-connection limits.
type SessionConfig struct {
	AuthTimeout     time.Duration
	DefaultPageSize int
	MaxPageSize     int
	CommandRate     float64
	CommandBurst    int
	TopicPrefix     string

	SendBuffer   int
	MaxFrameSize int64
	WriteWait    time.Duration
	PongWait     time.Duration
}

// SessionConfigFrom fills a SessionConfig from the service configuration,
// using the package defaults for unset values.
func SessionConfigFrom(sc config.SessionConfig, bc config.BusConfig) SessionConfig {
	cfg := SessionConfig{
		AuthTimeout:     sc.AuthTimeout,
		DefaultPageSize: sc.DefaultPageSize,
		MaxPageSize:     sc.MaxPageSize,
		CommandRate:     sc.CommandRate,
		CommandBurst:    sc.CommandBurst,
		TopicPrefix:     bc.TopicPrefix,
		SendBuffer:      sc.SendBuffer,
		MaxFrameSize:    sc.MaxFrameSize,
		WriteWait:       sc.WriteWait,
		PongWait:        sc.PongWait,
	}
	return cfg.withDefaults()
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = config.DefaultAuthTimeout
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = config.DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = config.MaxPageSize
	}
	// A limiter with zero burst admits nothing, not even auth.
	if c.CommandRate > 0 && c.CommandBurst < 1 {
		c.CommandBurst = config.DefaultCommandBurst
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = config.DefaultTopicPrefix
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = config.DefaultSendBuffer
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = config.DefaultMaxFrameSize
	}
	if c.WriteWait <= 0 {
		c.WriteWait = config.DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = config.DefaultPongWait
	}
	return c
}

// Session is the server side of one client connection to one room. The
// transport feeds inbound frames to HandleFrame one at a time; the bus
// calls Deliver; replies and broadcasts leave through the Outbox.
type Session struct {
	id        string
	cfg       SessionConfig
	validator auth.TokenValidator
	store     Store
	bus       Bus
	out       Outbox
	limiter   *rate.Limiter
	onClose   func(*Session)

	mu         sync.Mutex
	state      State
	roomID     string
	topic      string
	identity   string
	subscribed bool
	authTimer  *time.Timer

	closeOnce sync.Once
}

func newSession(roomID string, cfg SessionConfig, validator auth.TokenValidator, store Store, bus Bus, out Outbox) *Session {
	limit := rate.Inf
	if cfg.CommandRate > 0 {
		limit = rate.Limit(cfg.CommandRate)
	}
	return &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		validator: validator,
		store:     store,
		bus:       bus,
		out:       out,
		limiter:   rate.NewLimiter(limit, cfg.CommandBurst),
		state:     StateConnecting,
		roomID:    roomID,
		topic:     Topic(cfg.TopicPrefix, roomID),
	}
}

// ID is a random id used in logs.
func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity is the authenticated user, empty before authentication.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// RoomID is the room from the connection path, canonicalized after auth.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Open accepts the connection and starts the authentication deadline.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return
	}
	s.state = StateUnauthenticated
	s.authTimer = time.AfterFunc(s.cfg.AuthTimeout, s.authExpired)
}

func (s *Session) authExpired() {
	s.mu.Lock()
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		return
	}
	s.sendLocked(errorEvent("authentication timeout"))
	s.mu.Unlock()

	logger.Infof("Session %s: no auth within %s, closing", s.id, s.cfg.AuthTimeout)
	s.Close()
}

// HandleFrame processes one inbound text frame. Calls must not overlap.
func (s *Session) HandleFrame(ctx context.Context, data []byte) {
	state := s.State()
	if state != StateUnauthenticated && state != StateAuthenticated {
		return
	}

	if !s.limiter.Allow() {
		s.send(errorEvent("rate limit exceeded"))
		return
	}

	cmd, err := ParseCommand(data)
	if err != nil {
		s.send(errorEvent(apperr.MessageOf(err)))
		if state == StateUnauthenticated {
			s.Close()
		}
		return
	}

	if state == StateUnauthenticated {
		if _, ok := cmd.(AuthCommand); !ok {
			s.send(errorEvent("authentication required"))
			s.Close()
			return
		}
	}

	cmd.dispatch(ctx, s)
}

func (s *Session) handleAuth(ctx context.Context, cmd AuthCommand) {
	if s.State() != StateUnauthenticated {
		s.send(errorEvent("already authenticated"))
		return
	}

	identity, err := s.validator.Validate(cmd.Token)
	if err != nil {
		s.rejectAuth(err)
		return
	}

	room, err := s.store.ResolveRoom(ctx, s.roomID)
	if err != nil {
		s.rejectAuth(err)
		return
	}
	if !s.store.IsParticipant(room, identity.UserID) {
		s.rejectAuth(apperr.Authorization("not a participant of this chat"))
		return
	}

	topic := Topic(s.cfg.TopicPrefix, room.ID)
	if err := s.bus.Subscribe(ctx, topic, s); err != nil {
		s.rejectAuth(err)
		return
	}

	s.mu.Lock()
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		// Closed while authenticating; Close did not know about the
		// subscription.
		if err := s.bus.Unsubscribe(context.Background(), topic, s); err != nil {
			logger.Warningf("Session %s: unsubscribe after close: %v", s.id, err)
		}
		return
	}
	s.roomID = room.ID
	s.topic = topic
	s.identity = identity.UserID
	s.subscribed = true
	s.state = StateAuthenticated
	if s.authTimer != nil {
		s.authTimer.Stop()
	}
	s.sendLocked(authEvent(true))
	s.mu.Unlock()

	logger.Infof("Session %s: user %s joined room %s", s.id, identity.UserID, room.ID)
}

// rejectAuth answers a failed auth and closes the connection.
func (s *Session) rejectAuth(err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Errorf("Session %s: auth for room %s failed: %v", s.id, s.roomID, err)
	} else {
		logger.Infof("Session %s: auth for room %s rejected: %v", s.id, s.roomID, err)
	}
	s.send(authEvent(false))
	s.Close()
}

func (s *Session) handleFetch(ctx context.Context, cmd FetchCommand) {
	size := s.cfg.DefaultPageSize
	if cmd.Size != nil {
		size = *cmd.Size
	}
	offset := config.DefaultPageOffset
	if cmd.Offset != nil {
		offset = *cmd.Offset
	}
	if size < 0 || offset < 0 {
		s.send(errorEvent("size and offset must be non-negative integers"))
		return
	}
	if size > s.cfg.MaxPageSize {
		s.send(errorEvent(fmt.Sprintf("size must not exceed %d", s.cfg.MaxPageSize)))
		return
	}

	direction := storage.Direction(cmd.Direction)
	switch direction {
	case "":
		direction = storage.Before
	case storage.Before, storage.After:
	default:
		s.send(errorEvent("direction must be before or after"))
		return
	}

	page, err := s.store.PageMessages(ctx, s.RoomID(), storage.PageQuery{
		Size:      size,
		Offset:    offset,
		Anchor:    cmd.Anchor,
		Direction: direction,
	})
	if err != nil {
		s.fail("fetch", err)
		return
	}

	viewer := s.Identity()
	messages := make([]MessageEvent, 0, len(page.Messages))
	for i := range page.Messages {
		messages = append(messages, viewMessage(&page.Messages[i], viewer))
	}
	s.send(FetchEvent{Event: config.EventFetch, Messages: messages, HasMore: page.HasMore})
}

func (s *Session) handleMessage(ctx context.Context, cmd MessageCommand) {
	if strings.TrimSpace(cmd.Content) == "" {
		s.send(errorEvent("content must be a non-empty string"))
		return
	}
	typ := models.MessageType(cmd.Type)
	if !typ.Valid() {
		s.send(errorEvent("invalid message type"))
		return
	}

	msg, err := s.store.AppendMessage(ctx, s.RoomID(), s.Identity(), typ, cmd.Content)
	if err != nil {
		s.fail("message", err)
		return
	}

	// The sender sees its own message through the bus like everyone else.
	if err := s.bus.Publish(ctx, s.topic, BroadcastOf(msg)); err != nil {
		logger.Errorf("Session %s: publish message %s: %v", s.id, msg.ID, err)
		s.send(errorEvent("message saved but not delivered"))
	}
}

func (s *Session) handleUpdate(ctx context.Context, cmd UpdateCommand) {
	var err error
	switch cmd.Type {
	case UpdateSign:
		_, err = s.store.SignDocument(ctx, cmd.Content, s.Identity())
	case UpdateDelivered, UpdateRead:
		_, err = s.store.AdvanceMessageStatus(ctx, s.RoomID(), cmd.Content, models.MessageStatus(cmd.Type))
	default:
		s.send(errorEvent("unknown update type"))
		return
	}

	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			logger.Errorf("Session %s: update %s of %q failed: %v", s.id, cmd.Type, cmd.Content, err)
		}
		s.send(updateEvent(cmd.Type, false))
		return
	}
	s.send(updateEvent(cmd.Type, true))
}

// fail reports a command error to the client; the connection stays open.
func (s *Session) fail(command string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Errorf("Session %s: %s failed: %v", s.id, command, err)
	}
	s.send(errorEvent(apperr.MessageOf(err)))
}

// Deliver implements Subscriber. is_self is computed here, per viewer.
func (s *Session) Deliver(ev Broadcast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return
	}
	s.sendLocked(viewBroadcast(ev, s.identity))
}

func (s *Session) send(event any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendLocked(event)
}

func (s *Session) sendLocked(event any) {
	if s.state == StateClosed {
		return
	}
	if err := s.out.Send(event); err != nil {
		logger.Warningf("Session %s: dropping %T: %v", s.id, event, err)
	}
}

// Close ends the session exactly once: it releases the bus subscription and
// closes the outbox. It may be called from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = StateClosed
		subscribed, topic := s.subscribed, s.topic
		s.subscribed = false
		if s.authTimer != nil {
			s.authTimer.Stop()
		}
		s.mu.Unlock()

		if subscribed {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.bus.Unsubscribe(ctx, topic, s); err != nil {
				logger.Warningf("Session %s: unsubscribe %s: %v", s.id, topic, err)
			}
			cancel()
		}
		s.out.Close()

		if s.onClose != nil {
			s.onClose(s)
		}
		logger.Debugf("Session %s closed (was %s)", s.id, prev)
	})
}
