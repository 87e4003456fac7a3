package chathub_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"townchat/backend/internal/chathub"
	"townchat/backend/internal/models"
	"townchat/backend/internal/storage"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ResolveRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockStore) IsParticipant(room *models.Room, identity string) bool {
	args := m.Called(room, identity)
	return args.Bool(0)
}

func (m *MockStore) AppendMessage(ctx context.Context, roomID, senderID string, typ models.MessageType, content string) (*models.Message, error) {
	args := m.Called(ctx, roomID, senderID, typ, content)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockStore) PageMessages(ctx context.Context, roomID string, q storage.PageQuery) (*storage.Page, error) {
	args := m.Called(ctx, roomID, q)
	page, _ := args.Get(0).(*storage.Page)
	return page, args.Error(1)
}

func (m *MockStore) AdvanceMessageStatus(ctx context.Context, roomID, messageID string, status models.MessageStatus) (*models.Message, error) {
	args := m.Called(ctx, roomID, messageID, status)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *MockStore) SignDocument(ctx context.Context, documentID, signerID string) (*models.SigningStatus, error) {
	args := m.Called(ctx, documentID, signerID)
	signing, _ := args.Get(0).(*models.SigningStatus)
	return signing, args.Error(1)
}

var _ chathub.Store = (*MockStore)(nil)

// fakeOutbox records what a session sends.
type fakeOutbox struct {
	mu     sync.Mutex
	closed bool
	sent   chan any
}

func newFakeOutbox() *fakeOutbox {
	return &fakeOutbox{sent: make(chan any, 100)}
}

func (o *fakeOutbox) Send(event any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return chathub.ErrOutboxClosed
	}
	o.sent <- event
	return nil
}

func (o *fakeOutbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *fakeOutbox) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// next returns the next sent event or fails the test after a second.
func (o *fakeOutbox) next(t *testing.T) any {
	t.Helper()
	select {
	case ev := <-o.sent:
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event, got none")
		return nil
	}
}

// empty reports whether nothing more was sent.
func (o *fakeOutbox) empty() bool {
	return len(o.sent) == 0
}
