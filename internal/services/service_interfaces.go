package services

import (
	"context"
	"time"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
)

type UsageLedger interface {
	MaybeReset(userID uuid.UUID) error
	CheckQuota(userID uuid.UUID) (QuotaStatus, error)
	RecordUsage(userID uuid.UUID, delta int) error
}

type ResearchCache interface {
	Lookup(ctx context.Context, query string, maxResults int) (*CachedResearch, error)
	Store(ctx context.Context, query string, maxResults int, entry *CachedResearch) error
}

type ResearchProvider interface {
	DeepResearch(ctx context.Context, query string, maxResults int) (*ProviderResult, error)
}

type ResearchStoreDB interface {
	CreateResearchRequestDB(req *models.ResearchRequest) error
	MarkResearchCompletedDB(requestID uuid.UUID, update ResearchCompletion) error
	MarkResearchFailedDB(requestID uuid.UUID, errorMessage string, completedAt time.Time) error
	GetResearchRequestDB(requestID uuid.UUID) (*models.ResearchRequest, error)
	GetResearchRequestsByUserDB(userID uuid.UUID) ([]models.ResearchRequest, error)
}

type ShowStoreDB interface {
	CreateShowDB(show *models.Show) error
	GetShowsByUserDB(userID uuid.UUID) ([]models.Show, error)
}

type ShowMaterializer interface {
	Materialize(userID, requestID uuid.UUID, rows []ResultRow) MaterializeOutcome
}

type ProgressPublisher interface {
	Publish(topic string, msg interface{})
}
