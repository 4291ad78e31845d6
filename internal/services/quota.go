package services

import "fmt"

const (
	TierBasic     = "basic"
	TierGrowth    = "growth"
	TierPro       = "pro"
	TierAgency    = "agency"
	TierUnlimited = "unlimited"
)

// QuotaLimit is either a bounded monthly ceiling or unlimited. Modeling
// this as a variant instead of a large numeric sentinel keeps the
// comparison logic honest at the boundary.
type QuotaLimit struct {
	unlimited bool
	monthly   int
}

func BoundedQuota(monthly int) QuotaLimit {
	return QuotaLimit{monthly: monthly}
}

func UnlimitedQuota() QuotaLimit {
	return QuotaLimit{unlimited: true}
}

func (q QuotaLimit) IsUnlimited() bool {
	return q.unlimited
}

// Monthly returns the bounded ceiling. Callers must check IsUnlimited first.
func (q QuotaLimit) Monthly() int {
	return q.monthly
}

// Allows reports whether one more discovery is permitted at the given
// usage count.
func (q QuotaLimit) Allows(used int) bool {
	return q.unlimited || used < q.monthly
}

// DisplayLimit is the JSON representation of the ceiling, -1 for
// unlimited tiers.
func (q QuotaLimit) DisplayLimit() int {
	if q.unlimited {
		return -1
	}
	return q.monthly
}

func (q QuotaLimit) String() string {
	if q.unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("%d/month", q.monthly)
}

type tierLimits struct {
	discoveries QuotaLimit
	tokens      int64 // monthly token allowance, 0 means uncapped
}

var limitsByTier = map[string]tierLimits{
	TierBasic:     {discoveries: BoundedQuota(500), tokens: 2_000_000},
	TierGrowth:    {discoveries: BoundedQuota(2000), tokens: 10_000_000},
	TierPro:       {discoveries: BoundedQuota(5000), tokens: 30_000_000},
	TierAgency:    {discoveries: BoundedQuota(20000), tokens: 120_000_000},
	TierUnlimited: {discoveries: UnlimitedQuota(), tokens: 0},
}

// QuotaForTier maps a subscription tier to its monthly discovery quota.
// Unknown tiers fall back to basic rather than failing the request.
func QuotaForTier(tier string) QuotaLimit {
	if l, ok := limitsByTier[tier]; ok {
		return l.discoveries
	}
	return limitsByTier[TierBasic].discoveries
}

// TokenAllowanceForTier returns the monthly token allowance, 0 when the
// tier is uncapped.
func TokenAllowanceForTier(tier string) int64 {
	if l, ok := limitsByTier[tier]; ok {
		return l.tokens
	}
	return limitsByTier[TierBasic].tokens
}

// ValidTier reports whether the given string names a known tier.
func ValidTier(tier string) bool {
	_, ok := limitsByTier[tier]
	return ok
}
