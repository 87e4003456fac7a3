package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one entry of a room's append-only log. Only Status changes
// after creation. Within a room messages are ordered by CreatedAt, then ID.
type Message struct {
	// ID is the message identifier (UUID).
	ID string `gorm:"type:uuid;primaryKey" json:"id"`
	// RoomID is the owning room.
	RoomID string `gorm:"type:uuid;not null;index:idx_messages_room_created,priority:1" json:"room_id"`
	// SenderID is the participant that sent the message.
	SenderID string `gorm:"type:uuid;not null;index:idx_messages_sender_created,priority:1" json:"sender"`
	// Type tells how Content is interpreted.
	Type MessageType `gorm:"type:varchar(20);not null;default:text" json:"type"`
	// Content is raw text, or a reference id/URL for the reference types.
	Content string `gorm:"type:text" json:"content"`
	// Status is the delivery status.
	Status MessageStatus `gorm:"type:varchar(10);not null;default:sent" json:"status"`

	CreatedAt time.Time `gorm:"not null;index:idx_messages_room_created,priority:2;index:idx_messages_sender_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = MessageSent
	}
	return
}
