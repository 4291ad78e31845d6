package services_test

import (
	"errors"
	"testing"

	"guestbooker_go_backend/internal/models"
	"guestbooker_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMaterializePartialSuccess(t *testing.T) {
	store := new(MockShowStore)
	svc := services.NewShowService(store)
	userID, requestID := uuid.New(), uuid.New()

	rows := []services.ResultRow{
		{"name": "Show 1", "platform": "podcast"},
		{"name": "Show 2"},
		{"platform": "youtube"}, // no name
		{"name": "Show 3", "host": "Alice"},
		{"title": "Show 4"}, // title works as a name
		{"name": ""},        // empty name
		{"name": "Show 5"},
		{"name": "Show 6"},
		{"host": "Bob"}, // no name
		{"name": "Show 7", "subscriber_count": float64(12000)},
	}

	store.On("CreateShowDB", mock.AnythingOfType("*models.Show")).Return(nil).Times(7)

	outcome := svc.Materialize(userID, requestID, rows)
	assert.Equal(t, 7, outcome.Created)
	assert.Equal(t, 3, outcome.Skipped)
	store.AssertExpectations(t)
}

func TestMaterializeRowFieldMapping(t *testing.T) {
	store := new(MockShowStore)
	svc := services.NewShowService(store)
	userID, requestID := uuid.New(), uuid.New()

	var created *models.Show
	store.On("CreateShowDB", mock.AnythingOfType("*models.Show")).
		Run(func(args mock.Arguments) {
			created = args.Get(0).(*models.Show)
		}).Return(nil).Once()

	rows := []services.ResultRow{{
		"name":             "  Birding Weekly  ",
		"host":             "Jo Sparrow",
		"platform":         "YouTube",
		"email":            "jo@example.com",
		"subscriber_count": float64(45200),
		"episode_count":    "312",
	}}

	outcome := svc.Materialize(userID, requestID, rows)
	assert.Equal(t, services.MaterializeOutcome{Created: 1, Skipped: 0}, outcome)

	assert.Equal(t, "Birding Weekly", created.Name)
	assert.Equal(t, "Jo Sparrow", created.Host)
	assert.Equal(t, "youtube", created.Platform)
	assert.Equal(t, "jo@example.com", created.ContactEmail)
	assert.Equal(t, int64(45200), created.SubscriberCount)
	assert.Equal(t, 312, created.EpisodeCount)
	assert.Equal(t, "deep-research", created.Source)
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, requestID, created.ResearchRequestID)
}

func TestMaterializePersistenceFailureIsSkipped(t *testing.T) {
	store := new(MockShowStore)
	svc := services.NewShowService(store)

	store.On("CreateShowDB", mock.MatchedBy(func(s *models.Show) bool {
		return s.Name == "Broken Show"
	})).Return(errors.New("constraint violation")).Once()
	store.On("CreateShowDB", mock.AnythingOfType("*models.Show")).Return(nil).Once()

	rows := []services.ResultRow{
		{"name": "Broken Show"},
		{"name": "Fine Show"},
	}

	outcome := svc.Materialize(uuid.New(), uuid.New(), rows)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Skipped)
}

func TestMaterializeUnknownPlatformDefaultsToPodcast(t *testing.T) {
	store := new(MockShowStore)
	svc := services.NewShowService(store)

	var created *models.Show
	store.On("CreateShowDB", mock.AnythingOfType("*models.Show")).
		Run(func(args mock.Arguments) {
			created = args.Get(0).(*models.Show)
		}).Return(nil).Once()

	svc.Materialize(uuid.New(), uuid.New(), []services.ResultRow{
		{"name": "Mystery Show", "platform": "radio"},
	})
	assert.Equal(t, "podcast", created.Platform)
}
