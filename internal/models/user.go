package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User mirrors the identity records owned by the users service. The chat
// gateway only reads them, to name chat counterparts.
type User struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName string `gorm:"type:varchar(150)" json:"first_name"`
	LastName  string `gorm:"type:varchar(150)" json:"last_name"`
	// Pfp is the profile picture URL, empty when unset.
	Pfp string `gorm:"type:varchar(500)" json:"pfp"`
}

// DisplayName is "First Last" with missing parts dropped.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// BeforeCreate generates a UUID for users seeded without one.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
