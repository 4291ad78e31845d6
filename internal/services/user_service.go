package services

import (
	"time"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// CreateOrUpdateUser bootstraps an account on first sight: basic tier,
// zero usage, reset date one month out.
func (s *UserService) CreateOrUpdateUser(auth0ID, email, name, nickname string) (*models.User, error) {
	user := models.User{
		Auth0ID:      auth0ID,
		Email:        email,
		Name:         name,
		Nickname:     nickname,
		Tier:         TierBasic,
		QuotaResetAt: time.Now().AddDate(0, 1, 0),
	}
	result := s.db.Where(models.User{Auth0ID: auth0ID}).FirstOrCreate(&user)

	if result.Error != nil {
		return nil, result.Error
	}

	return &user, nil
}

func (s *UserService) GetUserByAuth0ID(auth0ID string) (*models.User, error) {
	var user models.User
	result := s.db.Where("auth0_id = ?", auth0ID).First(&user)
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}

// UpdateTier applies a subscription change, typically from the Stripe
// webhook.
func (s *UserService) UpdateTier(userID uuid.UUID, tier string) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("tier", tier).Error
}
