package services

import (
	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DefaultShowStore struct {
	db *gorm.DB
}

func NewShowStoreDB(db *gorm.DB) ShowStoreDB {
	return &DefaultShowStore{db: db}
}

func (s *DefaultShowStore) CreateShowDB(show *models.Show) error {
	return s.db.Create(show).Error
}

func (s *DefaultShowStore) GetShowsByUserDB(userID uuid.UUID) ([]models.Show, error) {
	var shows []models.Show
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&shows).Error
	return shows, err
}
