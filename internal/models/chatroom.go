package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is a persistent 1-on-1 chat channel between two users.
// Participants are fixed at creation; at most one room exists per
// unordered pair, enforced by the unique PairKey.
type Room struct {
	// ID is the room identifier (UUID) used in the websocket path.
	ID string `gorm:"type:uuid;primaryKey" json:"guid"`
	// User1ID is the participant that initiated the room.
	User1ID string `gorm:"type:uuid;not null;index" json:"user1"`
	// User2ID is the other participant.
	User2ID string `gorm:"type:uuid;not null;index" json:"user2"`
	// PairKey is the sorted participant pair, see PairKey.
	PairKey string `gorm:"type:varchar(80);not null;uniqueIndex:unique_chat_pair" json:"-"`
	// LastMessageID points at the most recent message, nil for an empty room.
	LastMessageID *string `gorm:"type:uuid" json:"last_message_id"`

	LastMessage *Message `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
	User1       *User    `gorm:"foreignKey:User1ID" json:"-"`
	User2       *User    `gorm:"foreignKey:User2ID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PairKey returns the order-independent key for two participants.
func PairKey(a, b string) string {
	ids := []string{strings.ToLower(a), strings.ToLower(b)}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// HasParticipant reports whether identity is one of the two participants.
func (r *Room) HasParticipant(identity string) bool {
	if r == nil || identity == "" {
		return false
	}
	return strings.EqualFold(r.User1ID, identity) || strings.EqualFold(r.User2ID, identity)
}

// Counterpart returns the participant that is not identity.
func (r *Room) Counterpart(identity string) string {
	if strings.EqualFold(r.User1ID, identity) {
		return r.User2ID
	}
	return r.User1ID
}

// CounterpartUser returns the preloaded User of the other participant, if any.
func (r *Room) CounterpartUser(identity string) *User {
	if strings.EqualFold(r.User1ID, identity) {
		return r.User2
	}
	return r.User1
}

func (r *Room) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.PairKey == "" {
		r.PairKey = PairKey(r.User1ID, r.User2ID)
	}
	return
}
