package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/api/handler"
	"townchat/backend/internal/auth"
	"townchat/backend/internal/config"
	"townchat/backend/internal/models"
)

func (e *env) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/chat/" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (e *env) join(t *testing.T, roomID, userID string) *websocket.Conn {
	t.Helper()
	conn := e.dial(t, roomID)
	send(t, conn, map[string]any{"event": "auth", "token": e.token(t, userID, time.Hour)})
	require.Equal(t, map[string]any{"event": "auth", "status": "ok"}, receive(t, conn))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(frame))
}

func receive(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestChatSocket_MessageReachesBothParticipants(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "Alice", "Smith")
	bob := e.user(t, "Bob", "Builder")
	room, _, err := e.store.FindOrCreateRoom(context.Background(), alice, bob)
	require.NoError(t, err)

	aliceConn := e.join(t, room.ID, alice)
	bobConn := e.join(t, room.ID, bob)

	send(t, aliceConn, map[string]any{"event": "message", "type": "text", "content": "hi"})

	got := receive(t, bobConn)
	assert.Equal(t, "message", got["event"])
	assert.Equal(t, "hi", got["content"])
	assert.Equal(t, alice, got["sender"])
	assert.Equal(t, "sent", got["status"])
	assert.Equal(t, false, got["is_self"])

	own := receive(t, aliceConn)
	assert.Equal(t, got["id"], own["id"])
	assert.Equal(t, true, own["is_self"])

	send(t, bobConn, map[string]any{"event": "update", "type": "read", "content": got["id"]})
	assert.Equal(t, map[string]any{"event": "update", "type": "read", "status": "ok"}, receive(t, bobConn))
}

func TestChatSocket_FetchPages(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "Alice", "Smith")
	bob := e.user(t, "Bob", "Builder")
	ctx := context.Background()
	room, _, err := e.store.FindOrCreateRoom(ctx, alice, bob)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err := e.store.AppendMessage(ctx, room.ID, bob, models.MessageText, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}

	conn := e.join(t, room.ID, alice)

	send(t, conn, map[string]any{"event": "fetch", "size": 2, "offset": 0})
	page := receive(t, conn)
	assert.Equal(t, "fetch", page["event"])
	assert.Equal(t, true, page["has_more"])
	messages := page["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "m5", messages[0].(map[string]any)["content"])
	assert.Equal(t, false, messages[0].(map[string]any)["is_self"])

	send(t, conn, map[string]any{"event": "fetch", "size": 2, "offset": 4})
	page = receive(t, conn)
	assert.Equal(t, false, page["has_more"])
	messages = page["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].(map[string]any)["content"])
}

func TestChatSocket_ExpiredTokenFailsAndCloses(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "Alice", "Smith")
	bob := e.user(t, "Bob", "Builder")
	room, _, err := e.store.FindOrCreateRoom(context.Background(), alice, bob)
	require.NoError(t, err)

	conn := e.dial(t, room.ID)
	send(t, conn, map[string]any{"event": "auth", "token": e.token(t, alice, -time.Hour)})
	assert.Equal(t, map[string]any{"event": "auth", "status": "failed"}, receive(t, conn))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestChatSocket_OutsiderIsRejected(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "Alice", "Smith")
	bob := e.user(t, "Bob", "Builder")
	mallory := e.user(t, "Mallory", "")
	room, _, err := e.store.FindOrCreateRoom(context.Background(), alice, bob)
	require.NoError(t, err)

	conn := e.dial(t, room.ID)
	send(t, conn, map[string]any{"event": "auth", "token": e.token(t, mallory, time.Hour)})
	assert.Equal(t, "failed", receive(t, conn)["status"])

	unknown := e.dial(t, "no-such-room")
	send(t, unknown, map[string]any{"event": "auth", "token": e.token(t, alice, time.Hour)})
	assert.Equal(t, "failed", receive(t, unknown)["status"])
}

func TestChatSocket_InvalidMessageKeepsConnectionOpen(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "Alice", "Smith")
	bob := e.user(t, "Bob", "Builder")
	room, _, err := e.store.FindOrCreateRoom(context.Background(), alice, bob)
	require.NoError(t, err)

	conn := e.join(t, room.ID, alice)

	send(t, conn, map[string]any{"event": "message", "type": "bogus", "content": "x"})
	got := receive(t, conn)
	assert.Equal(t, "error", got["event"])
	assert.NotEmpty(t, got["message"])

	send(t, conn, map[string]any{"event": "fetch"})
	page := receive(t, conn)
	assert.Equal(t, "fetch", page["event"])
	assert.Equal(t, []any{}, page["messages"])
	assert.Equal(t, false, page["has_more"])
}

func TestChatSocket_CheckOrigin(t *testing.T) {
	e := newEnv(t)
	r := gin.New()
	handler.NewHandler(e.mgr, e.store, nil, auth.NewValidator(testAuth),
		config.ServerConfig{AllowedOrigins: []string{"chat.example"}}).Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat/any"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://chat.example"}})
	require.NoError(t, err)
	_ = conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = conn.Close()
}
