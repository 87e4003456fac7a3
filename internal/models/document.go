package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Document is a co-signable document. Documents are created outside the
// chat flow and referenced by messages of type "document".
type Document struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"guid"`
	CreatorID string `gorm:"type:uuid;not null;index" json:"creator"`

	TargetURL   string         `gorm:"type:varchar(500)" json:"target_url"`
	Title       string         `gorm:"type:varchar(255)" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`

	Status DocumentStatus `gorm:"type:varchar(10);not null;default:pending" json:"status"`

	SigningStatuses []SigningStatus `gorm:"foreignKey:DocumentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = DocumentPending
	}
	return
}

// SigningStatus is one signer's decision on one document. There is at most
// one row per (document, user).
type SigningStatus struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"guid"`
	DocumentID string         `gorm:"type:uuid;not null;uniqueIndex:unique_document_signing,priority:1" json:"document"`
	UserID     string         `gorm:"type:uuid;not null;uniqueIndex:unique_document_signing,priority:2;index" json:"user"`
	Status     DocumentStatus `gorm:"type:varchar(10);not null;default:pending" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *SigningStatus) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = DocumentPending
	}
	return
}
