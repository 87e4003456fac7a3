package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
)

// Direction selects which side of the anchor a page is taken from.
type Direction string

const (
	Before Direction = config.DirectionBefore
	After  Direction = config.DirectionAfter
)

// PageQuery describes one page of a room's history. A nil Anchor pages over
// the whole room.
type PageQuery struct {
	Size      int
	Offset    int
	Anchor    *time.Time
	Direction Direction
}

// Page is one page of messages. HasMore is Offset+Size < Total, where Total
// comes from a separate count and may lag concurrent inserts.
type Page struct {
	Messages []models.Message
	HasMore  bool
	Total    int64
}

// AppendMessage stores a message and moves the room's last-message pointer
// to it in the same transaction. The room row is locked for the duration,
// so appends to one room are serialized and created_at is strictly
// increasing within the room.
func (s *Service) AppendMessage(ctx context.Context, roomID, senderID string, typ models.MessageType, content string) (*models.Message, error) {
	id, ok := normalizeID(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !typ.Valid() {
		return nil, apperr.Validation("invalid message type")
	}

	var msg *models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}

		createdAt := s.now().UTC().Truncate(time.Microsecond)
		if room.LastMessageID != nil {
			var last models.Message
			err := tx.Select("created_at").Where("id = ?", *room.LastMessageID).First(&last).Error
			switch {
			case err == nil:
				if floor := last.CreatedAt.UTC(); !createdAt.After(floor) {
					createdAt = floor.Add(time.Microsecond)
				}
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}

		m := &models.Message{
			RoomID:    room.ID,
			SenderID:  senderID,
			Type:      typ,
			Content:   content,
			Status:    models.MessageSent,
			CreatedAt: createdAt,
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if err := tx.Model(&room).Update("last_message_id", m.ID).Error; err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			logger.Errorf("Failed to append message to room %s: %v", id, err)
		}
		return nil, err
	}
	return msg, nil
}

// PageMessages returns one page of a room's history: newest first for
// Before, oldest first for After. Ties on created_at are broken by id.
func (s *Service) PageMessages(ctx context.Context, roomID string, q PageQuery) (*Page, error) {
	id, ok := normalizeID(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if q.Size < 0 || q.Offset < 0 {
		return nil, apperr.Validation("size and offset must be non-negative")
	}
	if q.Direction == "" {
		q.Direction = Before
	}

	var order string
	switch q.Direction {
	case Before:
		order = "created_at DESC, id DESC"
	case After:
		order = "created_at ASC, id ASC"
	default:
		return nil, apperr.Validation("direction must be before or after")
	}

	scoped := func() *gorm.DB {
		db := s.DB.WithContext(ctx).Model(&models.Message{}).Where("room_id = ?", id)
		if q.Anchor != nil {
			anchor := q.Anchor.UTC()
			if q.Direction == Before {
				db = db.Where("created_at < ?", anchor)
			} else {
				db = db.Where("created_at > ?", anchor)
			}
		}
		return db
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		logger.Errorf("Failed to count messages of room %s: %v", id, err)
		return nil, err
	}

	messages := []models.Message{}
	if q.Size > 0 && int64(q.Offset) < total {
		if err := scoped().Order(order).Offset(q.Offset).Limit(q.Size).Find(&messages).Error; err != nil {
			logger.Errorf("Failed to page messages of room %s: %v", id, err)
			return nil, err
		}
	}

	return &Page{
		Messages: messages,
		HasMore:  int64(q.Offset+q.Size) < total,
		Total:    total,
	}, nil
}

// AdvanceMessageStatus moves a message forward through sent, delivered and
// read. Moving backwards or to the current status changes nothing.
func (s *Service) AdvanceMessageStatus(ctx context.Context, roomID, messageID string, status models.MessageStatus) (*models.Message, error) {
	if !status.Valid() {
		return nil, apperr.Validation("invalid message status")
	}
	rid, ok := normalizeID(roomID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	mid, ok := normalizeID(messageID)
	if !ok {
		return nil, ErrMessageNotFound
	}

	var msg models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND room_id = ?", mid, rid).
			First(&msg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}
		if !msg.Status.Advances(status) {
			return nil
		}
		if err := tx.Model(&msg).Update("status", status).Error; err != nil {
			return err
		}
		msg.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
