package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// ErrEmptyQuery rejects a request before any quota or provider work.
var ErrEmptyQuery = errors.New("query text is required")

// ProviderError wraps a provider-side failure (timeout, malformed
// response, provider-reported error). No usage is charged and nothing is
// cached when one of these surfaces.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ResearchResult is the response envelope for one research call.
type ResearchResult struct {
	RequestID          uuid.UUID   `json:"request_id"`
	Query              string      `json:"query"`
	MaxResults         int         `json:"max_results"`
	Results            []ResultRow `json:"results"`
	Summary            string      `json:"summary,omitempty"`
	ModelUsed          string      `json:"model_used,omitempty"`
	PromptTokens       int         `json:"prompt_tokens"`
	CompletionTokens   int         `json:"completion_tokens"`
	TotalTokens        int         `json:"total_tokens"`
	EstimatedCostCents int         `json:"estimated_cost_cents"`
	Cached             bool        `json:"cached"`
	ShowsCreated       int         `json:"shows_created"`
	ShowsSkipped       int         `json:"shows_skipped"`
	CompletedAt        time.Time   `json:"completed_at"`
}

type ResearchService struct {
	usage           UsageLedger
	cache           ResearchCache
	provider        ResearchProvider
	researchStore   ResearchStoreDB
	materializer    ShowMaterializer
	progress        ProgressPublisher
	providerTimeout time.Duration
	defaultResults  int
	maxResultsCap   int
}

func NewResearchService(
	usage UsageLedger,
	cache ResearchCache,
	provider ResearchProvider,
	researchStore ResearchStoreDB,
	materializer ShowMaterializer,
	progress ProgressPublisher,
	providerTimeout time.Duration,
	defaultResults int,
	maxResultsCap int,
) *ResearchService {
	return &ResearchService{
		usage:           usage,
		cache:           cache,
		provider:        provider,
		researchStore:   researchStore,
		materializer:    materializer,
		progress:        progress,
		providerTimeout: providerTimeout,
		defaultResults:  defaultResults,
		maxResultsCap:   maxResultsCap,
	}
}

// ProgressTopicForUser names the broker topic a client subscribes to for
// live phase events while its research call is in flight.
func ProgressTopicForUser(userID uuid.UUID) string {
	return "research_progress_" + userID.String()
}

func (s *ResearchService) publishProgress(userID uuid.UUID, requestID uuid.UUID, phase string) {
	s.progress.Publish(ProgressTopicForUser(userID), map[string]string{
		"request_id": requestID.String(),
		"phase":      phase,
	})
}

// RunResearch is the single entry point for a deep-research call:
// validation, reset rollover, quota gate, cache, provider, pricing,
// usage bookkeeping and materialization, in that order. The quota gate
// runs before any external work so the expensive path is reserved for
// requests that can legitimately succeed.
func (s *ResearchService) RunResearch(ctx context.Context, user *models.User, query string, maxResults int) (*ResearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = s.defaultResults
	}
	if maxResults > s.maxResultsCap {
		maxResults = s.maxResultsCap
	}

	requestID := uuid.New()
	s.publishProgress(user.ID, requestID, "validating")

	if err := s.usage.MaybeReset(user.ID); err != nil {
		return nil, fmt.Errorf("failed to roll usage window: %w", err)
	}

	status, err := s.usage.CheckQuota(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quota: %w", err)
	}
	if !status.Allowed {
		return nil, &QuotaExceededError{
			Used:    status.Used,
			Limit:   status.Limit.DisplayLimit(),
			ResetAt: status.ResetAt,
		}
	}

	s.publishProgress(user.ID, requestID, "cache_lookup")
	cached, err := s.cache.Lookup(ctx, query, maxResults)
	if err != nil {
		// A broken cache should not block research; log and fall through
		// to the provider.
		log.Warn().Err(err).Msg("Cache lookup failed, treating as miss")
		cached = nil
	}
	if cached != nil {
		return s.completeFromCache(user, requestID, query, maxResults, cached)
	}

	req := &models.ResearchRequest{
		RequestID:  requestID,
		UserID:     user.ID,
		Query:      query,
		MaxResults: maxResults,
		Status:     models.ResearchStatusPending,
	}
	if err := s.researchStore.CreateResearchRequestDB(req); err != nil {
		return nil, fmt.Errorf("failed to create research request: %w", err)
	}

	s.publishProgress(user.ID, requestID, "provider_call")
	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	// One query, one attempt: research calls are user-initiated and
	// expensive, so there is no automatic retry.
	providerResult, err := s.provider.DeepResearch(callCtx, query, maxResults)
	if err != nil {
		now := time.Now()
		if dbErr := s.researchStore.MarkResearchFailedDB(requestID, err.Error(), now); dbErr != nil {
			log.Error().Err(dbErr).Str("request_id", requestID.String()).Msg("Failed to mark research request failed")
		}
		s.publishProgress(user.ID, requestID, "failed")
		return nil, &ProviderError{Message: err.Error(), Err: err}
	}

	costCents := EstimateCostCents(providerResult.Model, providerResult.PromptTokens, providerResult.CompletionTokens)

	entry := &CachedResearch{
		Rows:               providerResult.Rows,
		Summary:            providerResult.Summary,
		ModelUsed:          providerResult.Model,
		PromptTokens:       providerResult.PromptTokens,
		CompletionTokens:   providerResult.CompletionTokens,
		EstimatedCostCents: costCents,
		CreatedAt:          time.Now(),
	}
	if err := s.cache.Store(ctx, query, maxResults, entry); err != nil {
		log.Warn().Err(err).Msg("Failed to store research result in cache")
	}

	if err := s.usage.RecordUsage(user.ID, 1); err != nil {
		// A concurrent request may have taken the last quota slot between
		// the gate and here; the conditional update refuses rather than
		// overshooting the ceiling.
		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			now := time.Now()
			if dbErr := s.researchStore.MarkResearchFailedDB(requestID, quotaErr.Error(), now); dbErr != nil {
				log.Error().Err(dbErr).Str("request_id", requestID.String()).Msg("Failed to mark research request failed")
			}
			s.publishProgress(user.ID, requestID, "failed")
			return nil, quotaErr
		}
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	s.publishProgress(user.ID, requestID, "materializing")
	outcome := s.materializer.Materialize(user.ID, requestID, providerResult.Rows)

	completedAt := time.Now()
	payload, err := json.Marshal(providerResult.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result payload: %w", err)
	}
	completion := ResearchCompletion{
		Results:            datatypes.JSON(payload),
		Summary:            providerResult.Summary,
		ModelUsed:          providerResult.Model,
		PromptTokens:       providerResult.PromptTokens,
		CompletionTokens:   providerResult.CompletionTokens,
		EstimatedCostCents: costCents,
		Cached:             false,
		ShowsCreated:       outcome.Created,
		ShowsSkipped:       outcome.Skipped,
		CompletedAt:        completedAt,
	}
	if err := s.researchStore.MarkResearchCompletedDB(requestID, completion); err != nil {
		return nil, fmt.Errorf("failed to complete research request: %w", err)
	}

	s.publishProgress(user.ID, requestID, "done")
	return &ResearchResult{
		RequestID:          requestID,
		Query:              query,
		MaxResults:         maxResults,
		Results:            providerResult.Rows,
		Summary:            providerResult.Summary,
		ModelUsed:          providerResult.Model,
		PromptTokens:       providerResult.PromptTokens,
		CompletionTokens:   providerResult.CompletionTokens,
		TotalTokens:        providerResult.PromptTokens + providerResult.CompletionTokens,
		EstimatedCostCents: costCents,
		Cached:             false,
		ShowsCreated:       outcome.Created,
		ShowsSkipped:       outcome.Skipped,
		CompletedAt:        completedAt,
	}, nil
}

// completeFromCache serves a hit: no provider call, no usage charge,
// zero tokens and cost on the response. Shows were materialized when the
// entry was first produced, so the materializer is not re-run.
func (s *ResearchService) completeFromCache(user *models.User, requestID uuid.UUID, query string, maxResults int, cached *CachedResearch) (*ResearchResult, error) {
	completedAt := time.Now()
	payload, err := json.Marshal(cached.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached payload: %w", err)
	}

	req := &models.ResearchRequest{
		RequestID:   requestID,
		UserID:      user.ID,
		Query:       query,
		MaxResults:  maxResults,
		Status:      models.ResearchStatusCompleted,
		Results:     datatypes.JSON(payload),
		Summary:     cached.Summary,
		ModelUsed:   cached.ModelUsed,
		Cached:      true,
		CompletedAt: &completedAt,
	}
	if err := s.researchStore.CreateResearchRequestDB(req); err != nil {
		return nil, fmt.Errorf("failed to record cached research request: %w", err)
	}

	s.publishProgress(user.ID, requestID, "done")
	return &ResearchResult{
		RequestID:   requestID,
		Query:       query,
		MaxResults:  maxResults,
		Results:     cached.Rows,
		Summary:     cached.Summary,
		ModelUsed:   cached.ModelUsed,
		Cached:      true,
		CompletedAt: completedAt,
	}, nil
}

func (s *ResearchService) GetResearchRequest(requestID uuid.UUID) (*models.ResearchRequest, error) {
	return s.researchStore.GetResearchRequestDB(requestID)
}

func (s *ResearchService) GetUserResearchHistory(userID uuid.UUID) ([]models.ResearchRequest, error) {
	return s.researchStore.GetResearchRequestsByUserDB(userID)
}
