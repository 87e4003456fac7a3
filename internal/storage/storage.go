// Package storage persists rooms, messages, documents and signing
// statuses with GORM. It implements the room registry, the message store
// and the document co-sign tracker used by the chat sessions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
)

var (
	ErrRoomNotFound     = apperr.NotFound("chat room not found")
	ErrMessageNotFound  = apperr.NotFound("message not found")
	ErrDocumentNotFound = apperr.NotFound("document not found")
	ErrUserNotFound     = apperr.NotFound("user not found")
	ErrSelfChat         = apperr.Validation("cannot create chat with yourself")
)

// Storage is everything the HTTP handlers and the admin CLI need.
type Storage interface {
	ResolveRoom(ctx context.Context, roomID string) (*models.Room, error)
	IsParticipant(room *models.Room, identity string) bool
	FindOrCreateRoom(ctx context.Context, userA, userB string) (*models.Room, bool, error)
	ListRoomsForUser(ctx context.Context, identity string) ([]models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error

	AppendMessage(ctx context.Context, roomID, senderID string, typ models.MessageType, content string) (*models.Message, error)
	PageMessages(ctx context.Context, roomID string, q PageQuery) (*Page, error)
	AdvanceMessageStatus(ctx context.Context, roomID, messageID string, status models.MessageStatus) (*models.Message, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	SignDocument(ctx context.Context, documentID, signerID string) (*models.SigningStatus, error)
	SigningStatuses(ctx context.Context, documentID string) ([]models.SigningStatus, error)
	SetDocumentStatus(ctx context.Context, documentID string, status models.DocumentStatus) error
	DeleteDocument(ctx context.Context, documentID string) error

	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// Service is the GORM implementation of Storage.
type Service struct {
	DB *gorm.DB

	now      func() time.Time
	observer SignObserver
}

var _ Storage = (*Service)(nil)

// NewStorageService Constructor
func NewStorageService(db *gorm.DB) *Service {
	return &Service{
		DB:  db,
		now: time.Now,
	}
}

// WithClock replaces the time source used for message timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GormConfig is the gorm configuration shared by the server, the admin CLI
// and tests. Foreign keys are not created by migrations: rooms and
// messages reference each other, and cascades are done explicitly.
func GormConfig(cfg config.DatabaseConfig) *gorm.Config {
	return &gorm.Config{
		Logger:                                   NewGormLogger(cfg.LogLevel, cfg.SlowThreshold),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// OpenPostgres connects through lib/pq and configures the pool.
func OpenPostgres(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        cfg.DSN,
	}), GormConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Infof("Database connection established")
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.Message{},
		&models.Document{},
		&models.SigningStatus{},
	)
}

// normalizeID returns the canonical form of a UUID string. Ids that are not
// UUIDs can never match a row, so callers treat them as not found.
func normalizeID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// isUniqueViolation recognizes duplicate key errors from lib/pq and from
// dialects that translate them into gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
