package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/models"
)

// SaveUser inserts or updates the local copy of a user.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	if user.ID != "" {
		id, ok := normalizeID(user.ID)
		if !ok {
			return apperr.Validation("invalid user id")
		}
		user.ID = id
	}
	return s.DB.WithContext(ctx).Save(user).Error
}

func (s *Service) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	id, ok := normalizeID(userID)
	if !ok {
		return nil, ErrUserNotFound
	}
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
