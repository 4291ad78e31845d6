package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Auth0ID  string    `gorm:"unique;not null"`
	Email    string    `gorm:"unique;not null"`
	Name     string
	Nickname string

	// Subscription and discovery quota state. DiscoveryUsed is only
	// mutated through the usage service's conditional updates.
	Tier          string `gorm:"type:varchar(20);default:'basic'"`
	DiscoveryUsed int    `gorm:"default:0"`
	QuotaResetAt  time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}
