package services

import (
	"fmt"
	"time"

	"guestbooker_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuotaStatus is the ledger's view of one account at check time.
type QuotaStatus struct {
	Allowed bool
	Used    int
	Limit   QuotaLimit
	ResetAt time.Time
	Tier    string
}

// QuotaExceededError carries the used/limit/resetAt triple so handlers
// can render a precise 429 response.
type QuotaExceededError struct {
	Used    int
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly discovery quota exceeded (%d/%d), resets at %s",
		e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

type DefaultUsageService struct {
	db *gorm.DB
}

func NewUsageService(db *gorm.DB) UsageLedger {
	return &DefaultUsageService{db: db}
}

// nextResetAfter advances a reset date by whole months until it lands
// after now. The zero value of resetAt is returned unchanged when it is
// already in the future.
func nextResetAfter(now, resetAt time.Time) time.Time {
	next := resetAt
	for !next.After(now) {
		next = next.AddDate(0, 1, 0)
	}
	return next
}

// MaybeReset rolls the billing window forward when the reset date has
// passed: usage drops to zero and the reset date advances by whole
// months until it is in the future. The update is guarded on the old
// reset date, so concurrent callers collapse to a single rollover.
func (s *DefaultUsageService) MaybeReset(userID uuid.UUID) error {
	var user models.User
	if err := s.db.Select("id", "quota_reset_at").Where("id = ?", userID).First(&user).Error; err != nil {
		return err
	}

	now := time.Now()
	if now.Before(user.QuotaResetAt) {
		return nil
	}

	next := nextResetAfter(now, user.QuotaResetAt)

	result := s.db.Model(&models.User{}).
		Where("id = ? AND quota_reset_at = ?", userID, user.QuotaResetAt).
		Updates(map[string]interface{}{
			"discovery_used": 0,
			"quota_reset_at": next,
		})
	// RowsAffected == 0 means another request already rolled the window.
	return result.Error
}

func (s *DefaultUsageService) CheckQuota(userID uuid.UUID) (QuotaStatus, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return QuotaStatus{}, err
	}

	limit := QuotaForTier(user.Tier)
	return QuotaStatus{
		Allowed: limit.Allows(user.DiscoveryUsed),
		Used:    user.DiscoveryUsed,
		Limit:   limit,
		ResetAt: user.QuotaResetAt,
		Tier:    user.Tier,
	}, nil
}

// RecordUsage increments the monthly counter with a single conditional
// update whose predicate enforces the ceiling. Two concurrent calls that
// both passed CheckQuota cannot together push usage past the limit: the
// loser's update matches zero rows and gets a QuotaExceededError.
func (s *DefaultUsageService) RecordUsage(userID uuid.UUID, delta int) error {
	if delta <= 0 {
		delta = 1
	}

	var user models.User
	if err := s.db.Select("id", "tier", "quota_reset_at").Where("id = ?", userID).First(&user).Error; err != nil {
		return err
	}

	limit := QuotaForTier(user.Tier)
	query := s.db.Model(&models.User{}).Where("id = ?", userID)
	if !limit.IsUnlimited() {
		query = query.Where("discovery_used + ? <= ?", delta, limit.Monthly())
	}

	result := query.UpdateColumn("discovery_used", gorm.Expr("discovery_used + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		status, err := s.CheckQuota(userID)
		if err != nil {
			return err
		}
		return &QuotaExceededError{
			Used:    status.Used,
			Limit:   status.Limit.DisplayLimit(),
			ResetAt: status.ResetAt,
		}
	}
	return nil
}
