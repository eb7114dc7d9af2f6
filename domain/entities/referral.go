package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxReferralLevel is the deepest ancestor that earns commission
const MaxReferralLevel = 3

// commissionRates indexed by level-1
var commissionRates = [MaxReferralLevel]decimal.Decimal{
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.02"),
	decimal.RequireFromString("0.01"),
}

// CommissionRate returns the rate paid to the ancestor at level (1..3)
func CommissionRate(level int) decimal.Decimal {
	if level < 1 || level > MaxReferralLevel {
		return decimal.Zero
	}
	return commissionRates[level-1]
}

// ReferralEdge links an ancestor to a referred user at a given depth
type ReferralEdge struct {
	ReferrerID            string          `db:"referrer_id"`
	ReferredID            string          `db:"referred_id"`
	Level                 int             `db:"level"`
	CommissionAccumulated decimal.Decimal `db:"commission_accumulated"`
	CreatedAt             time.Time       `db:"created_at"`
}

// LevelPayment is one commission payment made during a cascade
type LevelPayment struct {
	Level      int             `json:"level"`
	ReferrerID string          `json:"referrer_id"`
	Rate       decimal.Decimal `json:"rate"`
	Amount     decimal.Decimal `json:"amount"`
}

// CommissionResult describes the outcome of one commission cascade.
// Levels[i] is nil when no ancestor exists at level i+1.
type CommissionResult struct {
	BeneficiaryID string                          `json:"beneficiary_id"`
	BaseAmount    decimal.Decimal                 `json:"base_amount"`
	Levels        [MaxReferralLevel]*LevelPayment `json:"levels"`
	Total         decimal.Decimal                 `json:"total"`
}

// ReferrersPaid counts the ancestors that received a payment
func (r *CommissionResult) ReferrersPaid() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, lp := range r.Levels {
		if lp != nil {
			n++
		}
	}
	return n
}

// TotalPaid returns the distributed total, zero for a nil result
func (r *CommissionResult) TotalPaid() decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return r.Total
}
