package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"townchat/backend/internal/logger"
)

// WebSocketClient is the websocket transport of one session. The read pump
// feeds frames to the session in order; the write pump owns all writes to
// the connection.
type WebSocketClient struct {
	conn    *websocket.Conn
	session *Session
	cfg     SessionConfig

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// ServeWebSocket attaches a session for roomID to an upgraded connection
// and blocks until the connection ends.
func (m *Manager) ServeWebSocket(conn *websocket.Conn, roomID string) {
	c := &WebSocketClient{
		conn: conn,
		cfg:  m.cfg,
		send: make(chan []byte, m.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	c.session = m.NewSession(roomID, c)
	if c.session == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(c.cfg.WriteWait))
		_ = conn.Close()
		return
	}

	go c.writePump()
	c.session.Open()
	c.readPump()
}

// Send queues event as a JSON text frame. A full queue means the client is
// too slow; the connection is closed rather than blocking the sender.
func (c *WebSocketClient) Send(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrOutboxClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		logger.Warningf("Session %s: send queue full, closing slow client", c.session.ID())
		c.Close()
		// The write pump may be stuck in a write to this client.
		_ = c.conn.Close()
		return ErrSlowConsumer
	}
}

// Close makes the write pump flush what is queued and close the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump feeds frames to the session until the connection fails, then
// closes the session.
func (c *WebSocketClient) readPump() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.session.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warningf("Session %s: error reading message: %v", c.session.ID(), err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		c.session.HandleFrame(ctx, message)
	}
}

// writePump sends queued frames and pings. It is the only writer.
func (c *WebSocketClient) writePump() {
	pingPeriod := (c.cfg.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued, without waiting for more.
func (c *WebSocketClient) flush() {
	for {
		select {
		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *WebSocketClient) write(msgType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteMessage(msgType, data)
}
