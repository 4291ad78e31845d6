package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ResearchStatusPending   = "pending"
	ResearchStatusCompleted = "completed"
	ResearchStatusFailed    = "failed"
)

// ResearchRequest is one deep-research submission. Terminal rows
// (completed or failed) are never mutated again; the row is retained at
// least as long as the result cache TTL so repeat queries can be served.
type ResearchRequest struct {
	gorm.Model
	RequestID  uuid.UUID `gorm:"type:uuid;index;unique"`
	UserID     uuid.UUID `gorm:"type:uuid;index"`
	Query      string    `gorm:"type:text"`
	MaxResults int
	Status     string `gorm:"type:varchar(16);index"`

	// Results holds the structured rows as returned by the provider,
	// Summary the optional prose recap.
	Results datatypes.JSON
	Summary string `gorm:"type:text"`

	ModelUsed          string `gorm:"type:varchar(64)"`
	PromptTokens       int
	CompletionTokens   int
	TotalTokens        int
	EstimatedCostCents int
	Cached             bool

	ShowsCreated int
	ShowsSkipped int

	ErrorMessage string `gorm:"type:text"`
	CompletedAt  *time.Time
}
