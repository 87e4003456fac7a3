package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"townchat/backend/internal/logger"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and origins whose host is in the allow list. "*" allows all.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// ServeWebSocket upgrades the connection and runs a chat session for the
// room in the path. Authentication happens inside the session, with the
// first frame.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	roomID := c.Param("room_id")

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warningf("Websocket upgrade for room %s failed: %v", roomID, err)
		return
	}

	h.Hub.ServeWebSocket(conn, roomID)
}
