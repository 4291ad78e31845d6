package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"guestbooker_go_backend/internal/models"
	"guestbooker_go_backend/internal/services"
	"guestbooker_go_backend/internal/utils/broker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type researchMocks struct {
	usage    *MockUsageLedger
	cache    *MockResearchCache
	provider *MockResearchProvider
	store    *MockResearchStore
	shows    *MockMaterializer
}

func newResearchService() (*services.ResearchService, *researchMocks) {
	m := &researchMocks{
		usage:    new(MockUsageLedger),
		cache:    new(MockResearchCache),
		provider: new(MockResearchProvider),
		store:    new(MockResearchStore),
		shows:    new(MockMaterializer),
	}
	svc := services.NewResearchService(
		m.usage,
		m.cache,
		m.provider,
		m.store,
		m.shows,
		broker.NewBroker(),
		30*time.Second,
		10,
		50,
	)
	return svc, m
}

func testUser(tier string, used int) (*models.User, services.QuotaStatus) {
	user := &models.User{
		ID:            uuid.New(),
		Tier:          tier,
		DiscoveryUsed: used,
		QuotaResetAt:  time.Now().AddDate(0, 1, 0),
	}
	limit := services.QuotaForTier(tier)
	return user, services.QuotaStatus{
		Allowed: limit.Allows(used),
		Used:    used,
		Limit:   limit,
		ResetAt: user.QuotaResetAt,
		Tier:    tier,
	}
}

func TestRunResearchSuccess(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 42)
	ctx := context.Background()

	providerResult := &services.ProviderResult{
		Rows: []services.ResultRow{
			{"name": "Birding Weekly", "platform": "podcast"},
			{"name": "Feather Report", "platform": "youtube"},
		},
		Summary:          "Two good matches",
		Model:            "gemini-1.5-flash",
		PromptTokens:     1500,
		CompletionTokens: 500,
	}

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, "podcasts about birdwatching", 10).Return(nil, nil).Once()
	m.store.On("CreateResearchRequestDB", mock.AnythingOfType("*models.ResearchRequest")).Return(nil).Once()
	m.provider.On("DeepResearch", mock.Anything, "podcasts about birdwatching", 10).Return(providerResult, nil).Once()
	m.cache.On("Store", mock.Anything, "podcasts about birdwatching", 10, mock.AnythingOfType("*services.CachedResearch")).Return(nil).Once()
	m.usage.On("RecordUsage", user.ID, 1).Return(nil).Once()
	m.shows.On("Materialize", user.ID, mock.AnythingOfType("uuid.UUID"), providerResult.Rows).
		Return(services.MaterializeOutcome{Created: 2, Skipped: 0}).Once()
	m.store.On("MarkResearchCompletedDB", mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("services.ResearchCompletion")).Return(nil).Once()

	result, err := svc.RunResearch(ctx, user, "podcasts about birdwatching", 0)
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 1500, result.PromptTokens)
	assert.Equal(t, 500, result.CompletionTokens)
	assert.Equal(t, 2000, result.TotalTokens)
	assert.Equal(t, services.EstimateCostCents("gemini-1.5-flash", 1500, 500), result.EstimatedCostCents)
	assert.Greater(t, result.EstimatedCostCents, 0)
	assert.Equal(t, 2, result.ShowsCreated)
	assert.Len(t, result.Results, 2)

	m.usage.AssertExpectations(t)
	m.cache.AssertExpectations(t)
	m.provider.AssertExpectations(t)
	m.store.AssertExpectations(t)
	m.shows.AssertExpectations(t)
}

func TestRunResearchCacheHit(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 42)

	cached := &services.CachedResearch{
		Rows:               []services.ResultRow{{"name": "Birding Weekly"}},
		Summary:            "From an earlier call",
		ModelUsed:          "gemini-1.5-flash",
		PromptTokens:       1500,
		CompletionTokens:   500,
		EstimatedCostCents: 2,
		CreatedAt:          time.Now().Add(-time.Hour),
	}

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, "Podcasts ABOUT Birdwatching", 10).Return(cached, nil).Once()
	m.store.On("CreateResearchRequestDB", mock.MatchedBy(func(req *models.ResearchRequest) bool {
		return req.Cached && req.Status == models.ResearchStatusCompleted
	})).Return(nil).Once()

	result, err := svc.RunResearch(context.Background(), user, "Podcasts ABOUT Birdwatching", 10)
	require.NoError(t, err)

	// A hit consumes no quota and reports zero tokens and cost.
	assert.True(t, result.Cached)
	assert.Zero(t, result.PromptTokens)
	assert.Zero(t, result.TotalTokens)
	assert.Zero(t, result.EstimatedCostCents)
	assert.Equal(t, "From an earlier call", result.Summary)

	m.provider.AssertNotCalled(t, "DeepResearch", mock.Anything, mock.Anything, mock.Anything)
	m.usage.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
	m.store.AssertExpectations(t)
}

func TestRunResearchQuotaGate(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 500)
	require.False(t, status.Allowed)

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()

	result, err := svc.RunResearch(context.Background(), user, "any novel query", 10)
	assert.Nil(t, result)

	var quotaErr *services.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, 500, quotaErr.Used)
	assert.Equal(t, 500, quotaErr.Limit)
	assert.WithinDuration(t, user.QuotaResetAt, quotaErr.ResetAt, time.Second)

	// The quota gate is first: no cache lookup, no provider call.
	m.cache.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything, mock.Anything)
	m.provider.AssertNotCalled(t, "DeepResearch", mock.Anything, mock.Anything, mock.Anything)
	m.usage.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
}

func TestRunResearchRollsWindowBeforeQuotaCheck(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 500)
	require.False(t, status.Allowed)

	// A stale window must roll before the quota is evaluated, or an
	// account due for its monthly reset would be rejected on last
	// month's counter.
	var calls []string
	m.usage.On("MaybeReset", user.ID).Run(func(mock.Arguments) {
		calls = append(calls, "reset")
	}).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Run(func(mock.Arguments) {
		calls = append(calls, "check")
	}).Return(status, nil).Once()

	_, err := svc.RunResearch(context.Background(), user, "any novel query", 10)
	require.Error(t, err)

	assert.Equal(t, []string{"reset", "check"}, calls)
}

func TestRunResearchUnlimitedTierNeverGated(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierUnlimited, 1_000_000)
	require.True(t, status.Allowed)

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	m.store.On("CreateResearchRequestDB", mock.Anything).Return(nil).Once()
	m.provider.On("DeepResearch", mock.Anything, mock.Anything, mock.Anything).
		Return(&services.ProviderResult{Model: "gemini-1.5-flash"}, nil).Once()
	m.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.usage.On("RecordUsage", user.ID, 1).Return(nil).Once()
	m.shows.On("Materialize", mock.Anything, mock.Anything, mock.Anything).
		Return(services.MaterializeOutcome{}).Once()
	m.store.On("MarkResearchCompletedDB", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := svc.RunResearch(context.Background(), user, "anything", 10)
	require.NoError(t, err)
	m.usage.AssertExpectations(t)
}

func TestRunResearchProviderFailure(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 10)

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	m.store.On("CreateResearchRequestDB", mock.Anything).Return(nil).Once()
	m.provider.On("DeepResearch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("research provider returned malformed JSON")).Once()
	m.store.On("MarkResearchFailedDB", mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()

	result, err := svc.RunResearch(context.Background(), user, "doomed query", 10)
	assert.Nil(t, result)

	var providerErr *services.ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Contains(t, providerErr.Message, "malformed JSON")

	// A failed call is free and leaves no cache entry.
	m.usage.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
	m.cache.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.store.AssertExpectations(t)
}

func TestRunResearchEmptyQuery(t *testing.T) {
	svc, m := newResearchService()
	user, _ := testUser(services.TierBasic, 0)

	for _, query := range []string{"", "   ", "\t\n"} {
		result, err := svc.RunResearch(context.Background(), user, query, 10)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, services.ErrEmptyQuery)
	}

	// Rejected before any quota or provider interaction.
	m.usage.AssertNotCalled(t, "MaybeReset", mock.Anything)
	m.provider.AssertNotCalled(t, "DeepResearch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunResearchQuotaRaceLoss(t *testing.T) {
	// Both concurrent calls pass the gate; the conditional update makes
	// the loser fail instead of overshooting the ceiling.
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 499)
	require.True(t, status.Allowed)

	raceErr := &services.QuotaExceededError{Used: 500, Limit: 500, ResetAt: user.QuotaResetAt}

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()
	m.store.On("CreateResearchRequestDB", mock.Anything).Return(nil).Once()
	m.provider.On("DeepResearch", mock.Anything, mock.Anything, mock.Anything).
		Return(&services.ProviderResult{Model: "gemini-1.5-flash", PromptTokens: 100}, nil).Once()
	m.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.usage.On("RecordUsage", user.ID, 1).Return(raceErr).Once()
	m.store.On("MarkResearchFailedDB", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	result, err := svc.RunResearch(context.Background(), user, "novel query", 10)
	assert.Nil(t, result)

	var quotaErr *services.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	m.shows.AssertNotCalled(t, "Materialize", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunResearchMaxResultsClamping(t *testing.T) {
	svc, m := newResearchService()
	user, status := testUser(services.TierPro, 0)

	m.usage.On("MaybeReset", user.ID).Return(nil)
	m.usage.On("CheckQuota", user.ID).Return(status, nil)
	m.store.On("CreateResearchRequestDB", mock.Anything).Return(nil)
	m.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	m.usage.On("RecordUsage", user.ID, 1).Return(nil)
	m.shows.On("Materialize", mock.Anything, mock.Anything, mock.Anything).Return(services.MaterializeOutcome{})
	m.store.On("MarkResearchCompletedDB", mock.Anything, mock.Anything).Return(nil)

	// Zero falls back to the default of 10, oversized requests cap at 50.
	m.cache.On("Lookup", mock.Anything, "q", 10).Return(nil, nil).Once()
	m.provider.On("DeepResearch", mock.Anything, "q", 10).Return(&services.ProviderResult{Model: "gemini-1.5-flash"}, nil).Once()
	_, err := svc.RunResearch(context.Background(), user, "q", 0)
	require.NoError(t, err)

	m.cache.On("Lookup", mock.Anything, "q", 50).Return(nil, nil).Once()
	m.provider.On("DeepResearch", mock.Anything, "q", 50).Return(&services.ProviderResult{Model: "gemini-1.5-flash"}, nil).Once()
	_, err = svc.RunResearch(context.Background(), user, "q", 9000)
	require.NoError(t, err)

	m.provider.AssertExpectations(t)
}

func TestRunResearchCacheFailureFallsThrough(t *testing.T) {
	// A broken cache backend must not block research.
	svc, m := newResearchService()
	user, status := testUser(services.TierBasic, 0)

	m.usage.On("MaybeReset", user.ID).Return(nil).Once()
	m.usage.On("CheckQuota", user.ID).Return(status, nil).Once()
	m.cache.On("Lookup", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused")).Once()
	m.store.On("CreateResearchRequestDB", mock.Anything).Return(nil).Once()
	m.provider.On("DeepResearch", mock.Anything, mock.Anything, mock.Anything).
		Return(&services.ProviderResult{Model: "gemini-1.5-flash"}, nil).Once()
	m.cache.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	m.usage.On("RecordUsage", user.ID, 1).Return(nil).Once()
	m.shows.On("Materialize", mock.Anything, mock.Anything, mock.Anything).Return(services.MaterializeOutcome{}).Once()
	m.store.On("MarkResearchCompletedDB", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := svc.RunResearch(context.Background(), user, "q", 10)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	m.provider.AssertExpectations(t)
}
