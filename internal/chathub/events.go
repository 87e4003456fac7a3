package chathub

import (
	"time"

	"townchat/backend/internal/config"
	"townchat/backend/internal/models"
)

// Outbound events. Every frame carries its kind in "event".

// AuthEvent answers an auth command with status ok or failed.
type AuthEvent struct {
	Event  string `json:"event"`
	Status string `json:"status"`
}

// FetchEvent is one page of history, newest first for direction before.
type FetchEvent struct {
	Event    string         `json:"event"`
	Messages []MessageEvent `json:"messages"`
	HasMore  bool           `json:"has_more"`
}

// MessageEvent is a message as seen by one viewer.
type MessageEvent struct {
	Event     string    `json:"event,omitempty"`
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	IsSelf    bool      `json:"is_self"`
}

type UpdateEvent struct {
	Event  string `json:"event"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status"`
}

// ErrorEvent reports a rejected command.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func authEvent(ok bool) AuthEvent {
	return AuthEvent{Event: config.EventAuth, Status: statusOf(ok)}
}

func updateEvent(subtype string, ok bool) UpdateEvent {
	return UpdateEvent{Event: config.EventUpdate, Type: subtype, Status: statusOf(ok)}
}

func errorEvent(msg string) ErrorEvent {
	return ErrorEvent{Event: config.EventError, Message: msg}
}

func statusOf(ok bool) string {
	if ok {
		return config.StatusOK
	}
	return config.StatusFailed
}

// BroadcastOf builds the bus event for a stored message.
func BroadcastOf(m *models.Message) Broadcast {
	return Broadcast{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Sender:    m.SenderID,
		Type:      string(m.Type),
		Content:   m.Content,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// viewMessage renders a stored message for viewer. Entries of a fetch
// reply carry no event field.
func viewMessage(m *models.Message, viewer string) MessageEvent {
	return MessageEvent{
		ID:        m.ID,
		Sender:    m.SenderID,
		Type:      string(m.Type),
		Content:   m.Content,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		IsSelf:    m.SenderID == viewer,
	}
}

// viewBroadcast renders a bus event for viewer.
func viewBroadcast(ev Broadcast, viewer string) MessageEvent {
	return MessageEvent{
		Event:     config.EventMessage,
		ID:        ev.ID,
		Sender:    ev.Sender,
		Type:      ev.Type,
		Content:   ev.Content,
		Status:    ev.Status,
		CreatedAt: ev.CreatedAt,
		IsSelf:    ev.Sender == viewer,
	}
}
