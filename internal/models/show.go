package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Show is a discovered podcast or YouTube show materialized from a
// research result row. Source is always "deep-research" for rows created
// by the materializer.
type Show struct {
	gorm.Model
	UserID            uuid.UUID `gorm:"type:uuid;index"`
	ResearchRequestID uuid.UUID `gorm:"type:uuid;index"`
	Name              string    `gorm:"not null"`
	Host              string
	Platform          string `gorm:"type:varchar(16)"` // podcast | youtube | both
	ContactEmail      string
	SubscriberCount   int64
	EpisodeCount      int
	Source            string `gorm:"type:varchar(32);default:'deep-research'"`
}
