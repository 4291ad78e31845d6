package services

import (
	"strconv"
	"strings"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaterializeOutcome reports how a batch of result rows fared. Skips are
// the normal case, never an error: callers report "found N, skipped M".
type MaterializeOutcome struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type ShowService struct {
	showStore ShowStoreDB
}

func NewShowService(showStore ShowStoreDB) *ShowService {
	return &ShowService{showStore: showStore}
}

// Materialize converts structured result rows into Show records,
// best-effort. A row without a usable name is skipped; a per-row create
// failure is skipped too. The batch never aborts.
func (s *ShowService) Materialize(userID, requestID uuid.UUID, rows []ResultRow) MaterializeOutcome {
	var outcome MaterializeOutcome
	for _, row := range rows {
		name := rowString(row, "name", "title")
		if name == "" {
			outcome.Skipped++
			continue
		}

		show := &models.Show{
			UserID:            userID,
			ResearchRequestID: requestID,
			Name:              name,
			Host:              rowString(row, "host"),
			Platform:          normalizePlatform(rowString(row, "platform")),
			ContactEmail:      rowString(row, "contact_email", "email"),
			SubscriberCount:   rowInt64(row, "subscriber_count", "subscribers"),
			EpisodeCount:      int(rowInt64(row, "episode_count", "episodes")),
			Source:            "deep-research",
		}
		if err := s.showStore.CreateShowDB(show); err != nil {
			log.Warn().Err(err).Str("show", name).Msg("Skipping show that failed to persist")
			outcome.Skipped++
			continue
		}
		outcome.Created++
	}
	return outcome
}

func (s *ShowService) GetShowsByUser(userID uuid.UUID) ([]models.Show, error) {
	return s.showStore.GetShowsByUserDB(userID)
}

func rowString(row ResultRow, keys ...string) string {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			if str, ok := v.(string); ok {
				return strings.TrimSpace(str)
			}
		}
	}
	return ""
}

func rowInt64(row ResultRow, keys ...string) int64 {
	for _, key := range keys {
		v, ok := row[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		case int64:
			return n
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func normalizePlatform(platform string) string {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "podcast":
		return "podcast"
	case "youtube":
		return "youtube"
	case "both":
		return "both"
	default:
		return "podcast"
	}
}
