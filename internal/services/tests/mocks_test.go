package services_test

import (
	"context"
	"time"

	"guestbooker_go_backend/internal/models"
	"guestbooker_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type MockUsageLedger struct {
	mock.Mock
}

func (m *MockUsageLedger) MaybeReset(userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockUsageLedger) CheckQuota(userID uuid.UUID) (services.QuotaStatus, error) {
	args := m.Called(userID)
	return args.Get(0).(services.QuotaStatus), args.Error(1)
}

func (m *MockUsageLedger) RecordUsage(userID uuid.UUID, delta int) error {
	args := m.Called(userID, delta)
	return args.Error(0)
}

type MockResearchCache struct {
	mock.Mock
}

func (m *MockResearchCache) Lookup(ctx context.Context, query string, maxResults int) (*services.CachedResearch, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CachedResearch), args.Error(1)
}

func (m *MockResearchCache) Store(ctx context.Context, query string, maxResults int, entry *services.CachedResearch) error {
	args := m.Called(ctx, query, maxResults, entry)
	return args.Error(0)
}

type MockResearchProvider struct {
	mock.Mock
}

func (m *MockResearchProvider) DeepResearch(ctx context.Context, query string, maxResults int) (*services.ProviderResult, error) {
	args := m.Called(ctx, query, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ProviderResult), args.Error(1)
}

type MockResearchStore struct {
	mock.Mock
}

func (m *MockResearchStore) CreateResearchRequestDB(req *models.ResearchRequest) error {
	args := m.Called(req)
	return args.Error(0)
}

func (m *MockResearchStore) MarkResearchCompletedDB(requestID uuid.UUID, update services.ResearchCompletion) error {
	args := m.Called(requestID, update)
	return args.Error(0)
}

func (m *MockResearchStore) MarkResearchFailedDB(requestID uuid.UUID, errorMessage string, completedAt time.Time) error {
	args := m.Called(requestID, errorMessage, completedAt)
	return args.Error(0)
}

func (m *MockResearchStore) GetResearchRequestDB(requestID uuid.UUID) (*models.ResearchRequest, error) {
	args := m.Called(requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ResearchRequest), args.Error(1)
}

func (m *MockResearchStore) GetResearchRequestsByUserDB(userID uuid.UUID) ([]models.ResearchRequest, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ResearchRequest), args.Error(1)
}

type MockShowStore struct {
	mock.Mock
}

func (m *MockShowStore) CreateShowDB(show *models.Show) error {
	args := m.Called(show)
	return args.Error(0)
}

func (m *MockShowStore) GetShowsByUserDB(userID uuid.UUID) ([]models.Show, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Show), args.Error(1)
}

type MockMaterializer struct {
	mock.Mock
}

func (m *MockMaterializer) Materialize(userID, requestID uuid.UUID, rows []services.ResultRow) services.MaterializeOutcome {
	args := m.Called(userID, requestID, rows)
	return args.Get(0).(services.MaterializeOutcome)
}
