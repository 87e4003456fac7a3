package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/models"
)

// ResolveRoom returns the room with the given id or ErrRoomNotFound.
func (s *Service) ResolveRoom(ctx context.Context, roomID string) (*models.Room, error) {
	id, ok := normalizeID(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	var room models.Room
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		logger.Errorf("Failed to resolve room %s: %v", id, err)
		return nil, err
	}
	return &room, nil
}

// IsParticipant is true iff identity is one of the room's two participants.
func (s *Service) IsParticipant(room *models.Room, identity string) bool {
	return room.HasParticipant(identity)
}

// FindOrCreateRoom returns the room for the unordered pair (userA, userB),
// creating it when absent. created reports whether this call inserted it.
//
// Concurrent callers race on the unique pair_key index; a caller whose
// insert fails looks the pair up again and returns the winner's room.
func (s *Service) FindOrCreateRoom(ctx context.Context, userA, userB string) (*models.Room, bool, error) {
	a, okA := normalizeID(userA)
	b, okB := normalizeID(userB)
	if !okA || !okB {
		return nil, false, apperr.Validation("invalid participant id")
	}
	if a == b {
		return nil, false, ErrSelfChat
	}

	key := models.PairKey(a, b)
	room, err := s.findRoomByPair(ctx, key)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, ErrRoomNotFound) {
		return nil, false, err
	}

	room = &models.Room{User1ID: a, User2ID: b, PairKey: key}
	createErr := s.DB.WithContext(ctx).Create(room).Error
	if createErr == nil {
		logger.Infof("Created room %s for %s", room.ID, key)
		return room, true, nil
	}

	existing, err := s.findRoomByPair(ctx, key)
	if err == nil {
		if !isUniqueViolation(createErr) {
			logger.Warningf("Room insert for %s failed but the pair exists: %v", key, createErr)
		}
		return existing, false, nil
	}
	logger.Errorf("Failed to create room for %s: %v", key, createErr)
	return nil, false, createErr
}

func (s *Service) findRoomByPair(ctx context.Context, key string) (*models.Room, error) {
	var room models.Room
	err := s.DB.WithContext(ctx).Where("pair_key = ?", key).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRoomsForUser returns the rooms identity takes part in, most recently
// active first, with the last message and both participants preloaded.
func (s *Service) ListRoomsForUser(ctx context.Context, identity string) ([]models.Room, error) {
	id, ok := normalizeID(identity)
	if !ok {
		return nil, apperr.Validation("invalid user id")
	}

	var rooms []models.Room
	err := s.DB.WithContext(ctx).
		Preload("LastMessage").
		Preload("User1").
		Preload("User2").
		Where("user1_id = ? OR user2_id = ?", id, id).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		logger.Errorf("Failed to list rooms for %s: %v", id, err)
		return nil, err
	}
	return rooms, nil
}

// DeleteRoom removes a room and all of its messages.
func (s *Service) DeleteRoom(ctx context.Context, roomID string) error {
	id, ok := normalizeID(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Room{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoomNotFound
		}
		logger.Infof("Deleted room %s", id)
		return nil
	})
}
