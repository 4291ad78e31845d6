package services

import (
	"time"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResearchCompletion carries everything written to a request row when it
// reaches the completed state.
type ResearchCompletion struct {
	Results            datatypes.JSON
	Summary            string
	ModelUsed          string
	PromptTokens       int
	CompletionTokens   int
	EstimatedCostCents int
	Cached             bool
	ShowsCreated       int
	ShowsSkipped       int
	CompletedAt        time.Time
}

type DefaultResearchStore struct {
	db *gorm.DB
}

func NewResearchStoreDB(db *gorm.DB) ResearchStoreDB {
	return &DefaultResearchStore{db: db}
}

func (s *DefaultResearchStore) CreateResearchRequestDB(req *models.ResearchRequest) error {
	return s.db.Create(req).Error
}

func (s *DefaultResearchStore) MarkResearchCompletedDB(requestID uuid.UUID, update ResearchCompletion) error {
	return s.db.Model(&models.ResearchRequest{}).
		Where("request_id = ? AND status = ?", requestID, models.ResearchStatusPending).
		Updates(map[string]interface{}{
			"status":               models.ResearchStatusCompleted,
			"results":              update.Results,
			"summary":              update.Summary,
			"model_used":           update.ModelUsed,
			"prompt_tokens":        update.PromptTokens,
			"completion_tokens":    update.CompletionTokens,
			"total_tokens":         update.PromptTokens + update.CompletionTokens,
			"estimated_cost_cents": update.EstimatedCostCents,
			"cached":               update.Cached,
			"shows_created":        update.ShowsCreated,
			"shows_skipped":        update.ShowsSkipped,
			"completed_at":         update.CompletedAt,
		}).Error
}

func (s *DefaultResearchStore) MarkResearchFailedDB(requestID uuid.UUID, errorMessage string, completedAt time.Time) error {
	return s.db.Model(&models.ResearchRequest{}).
		Where("request_id = ? AND status = ?", requestID, models.ResearchStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ResearchStatusFailed,
			"error_message": errorMessage,
			"completed_at":  completedAt,
		}).Error
}

func (s *DefaultResearchStore) GetResearchRequestDB(requestID uuid.UUID) (*models.ResearchRequest, error) {
	var req models.ResearchRequest
	if err := s.db.Where("request_id = ?", requestID).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *DefaultResearchStore) GetResearchRequestsByUserDB(userID uuid.UUID) ([]models.ResearchRequest, error) {
	var reqs []models.ResearchRequest
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}
