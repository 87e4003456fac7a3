// Package handler is the gin HTTP surface of the gateway: the websocket
// upgrade for chat sessions and the REST endpoints for listing and
// creating chats.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/auth"
	"townchat/backend/internal/chathub"
	"townchat/backend/internal/config"
	"townchat/backend/internal/resource"
	"townchat/backend/internal/storage"
)

// Handler holds the dependencies shared by all routes.
type Handler struct {
	Hub       *chathub.Manager
	Store     storage.Storage
	Resources resource.Fetcher
	Validator auth.TokenValidator

	origins []string
}

func NewHandler(hub *chathub.Manager, store storage.Storage, resources resource.Fetcher, validator auth.TokenValidator, cfg config.ServerConfig) *Handler {
	return &Handler{
		Hub:       hub,
		Store:     store,
		Resources: resources,
		Validator: validator,
		origins:   cfg.AllowedOrigins,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/ws/chat/:room_id", h.ServeWebSocket)

	api := r.Group("/api", h.RequireAuth())
	api.GET("/chats", h.ListChats)
	api.POST("/chats/create", h.CreateChat)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Hub.Sessions()})
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindAuthorization:
		return http.StatusForbidden
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": apperr.MessageOf(err)})
}
