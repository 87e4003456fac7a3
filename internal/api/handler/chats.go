package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
	"townchat/backend/internal/resource"
)

type lastMessageView struct {
	Type    models.MessageType `json:"type"`
	Content string             `json:"content"`
}

type chatView struct {
	GUID        string           `json:"guid"`
	Title       string           `json:"title"`
	Pfp         string           `json:"pfp"`
	LastMessage *lastMessageView `json:"last_message"`
}

// ListChats returns the caller's chats, most recently active first. Title
// and picture describe the other participant.
func (h *Handler) ListChats(c *gin.Context) {
	identity := identityOf(c)

	rooms, err := h.Store.ListRoomsForUser(c.Request.Context(), identity)
	if err != nil {
		abortWithError(c, err)
		return
	}

	chats := make([]chatView, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		view := chatView{GUID: room.ID}
		if other := room.CounterpartUser(identity); other != nil {
			view.Title = other.DisplayName()
			view.Pfp = other.Pfp
		}
		if room.LastMessage != nil {
			view.LastMessage = &lastMessageView{Type: room.LastMessage.Type, Content: room.LastMessage.Content}
		}
		chats = append(chats, view)
	}

	c.JSON(http.StatusOK, chats)
}

type createChatRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type createdMessageView struct {
	GUID      string             `json:"guid"`
	Type      models.MessageType `json:"type"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
}

type createChatResponse struct {
	ChatGUID string             `json:"chat_guid"`
	Message  createdMessageView `json:"message"`
}

// CreateChat opens (or reuses) the chat between the caller and the owner
// of a product or announcement, and posts the resource link as its first
// message.
func (h *Handler) CreateChat(c *gin.Context) {
	ctx := c.Request.Context()
	identity := identityOf(c)

	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperr.Validation("invalid payload"))
		return
	}
	kind := resource.Kind(req.Type)
	resourceID := strings.TrimSpace(req.Content)
	if (kind != resource.Product && kind != resource.Announcement) || resourceID == "" {
		abortWithError(c, apperr.Validation("invalid payload"))
		return
	}

	res, err := h.Resources.Fetch(ctx, kind, resourceID)
	if err != nil {
		logger.Warningf("Fetching %s %s failed: %v", kind, resourceID, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to fetch " + string(kind)})
		return
	}
	if res.Owner == "" {
		abortWithError(c, apperr.Validation("owner not found in "+string(kind)))
		return
	}

	owner, err := h.Store.GetUserByID(ctx, res.Owner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if strings.EqualFold(owner.ID, identity) {
		abortWithError(c, apperr.Validation("cannot create chat with yourself"))
		return
	}

	room, created, err := h.Store.FindOrCreateRoom(ctx, identity, owner.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if created {
		logger.Infof("Chat %s created between %s and %s", room.ID, identity, owner.ID)
	}

	content, err := h.Resources.ContentURL(kind, resourceID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	msg, err := h.Store.AppendMessage(ctx, room.ID, identity, models.MessageType(kind), content)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.Hub.PublishMessage(ctx, msg); err != nil {
		logger.Errorf("Message %s saved but not published: %v", msg.ID, err)
	}

	c.JSON(http.StatusCreated, createChatResponse{
		ChatGUID: room.ID,
		Message: createdMessageView{
			GUID:      msg.ID,
			Type:      msg.Type,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.UTC(),
		},
	})
}
