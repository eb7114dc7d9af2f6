package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMonthlyVestingRate is applied to new accounts unless configured otherwise
var DefaultMonthlyVestingRate = decimal.RequireFromString("0.03")

// Account is the per-user ledger record holding the four balance buckets
type Account struct {
	UserID             string          `db:"user_id"`
	Purchased          decimal.Decimal `db:"purchased"`
	VestingAccrued     decimal.Decimal `db:"vesting_accrued"`
	CommissionBalance  decimal.Decimal `db:"commission_balance"`
	TournamentBalance  decimal.Decimal `db:"tournament_balance"`
	TotalMXI           decimal.Decimal `db:"total_mxi"`
	MonthlyVestingRate decimal.Decimal `db:"monthly_vesting_rate"`
	LastAccrualAt      time.Time       `db:"last_accrual_at"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// NewAccount returns a zero-initialized account
func NewAccount(userID string, rate decimal.Decimal, now time.Time) *Account {
	return &Account{
		UserID:             userID,
		Purchased:          decimal.Zero,
		VestingAccrued:     decimal.Zero,
		CommissionBalance:  decimal.Zero,
		TournamentBalance:  decimal.Zero,
		TotalMXI:           decimal.Zero,
		MonthlyVestingRate: rate,
		LastAccrualAt:      now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Balance returns the current value of a bucket
func (a *Account) Balance(b Bucket) decimal.Decimal {
	switch b {
	case BucketPurchased:
		return a.Purchased
	case BucketVesting:
		return a.VestingAccrued
	case BucketCommission:
		return a.CommissionBalance
	case BucketTournament:
		return a.TournamentBalance
	}
	return decimal.Zero
}

func (a *Account) set(b Bucket, v decimal.Decimal) {
	switch b {
	case BucketPurchased:
		a.Purchased = v
	case BucketVesting:
		a.VestingAccrued = v
	case BucketCommission:
		a.CommissionBalance = v
	case BucketTournament:
		a.TournamentBalance = v
	}
}

// Credit increases a bucket by amount
func (a *Account) Credit(b Bucket, amount decimal.Decimal) error {
	if !b.Valid() {
		return fmt.Errorf("%w: unknown bucket %q", ErrInvalidAmount, b)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	a.set(b, a.Balance(b).Add(amount))
	if b.CountsTowardTotal() {
		a.TotalMXI = a.TotalMXI.Add(amount)
	}
	return nil
}

// Debit decreases a bucket by amount, refusing to go below zero
func (a *Account) Debit(b Bucket, amount decimal.Decimal) error {
	if !b.Valid() {
		return fmt.Errorf("%w: unknown bucket %q", ErrInvalidAmount, b)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive, got %s", ErrInvalidAmount, amount)
	}
	current := a.Balance(b)
	if amount.GreaterThan(current) {
		return fmt.Errorf("%w: %s has %s, need %s", ErrInsufficientBalance, b, current, amount)
	}
	a.set(b, current.Sub(amount))
	if b.CountsTowardTotal() {
		a.TotalMXI = a.TotalMXI.Sub(amount)
	}
	return nil
}

// SpendableTotal is the sum of the buckets an admin debit may draw from
func (a *Account) SpendableTotal() decimal.Decimal {
	return a.Purchased.Add(a.CommissionBalance).Add(a.TournamentBalance)
}

// ReferralBalance is the portion of total_mxi not attributed to any stored
// bucket. It is derived and must never be negative.
func (a *Account) ReferralBalance() decimal.Decimal {
	return a.TotalMXI.Sub(a.Purchased).Sub(a.TournamentBalance).Sub(a.CommissionBalance)
}

// Validate checks the non-negativity invariants of every bucket
func (a *Account) Validate() error {
	for _, b := range []Bucket{BucketPurchased, BucketVesting, BucketCommission, BucketTournament} {
		if a.Balance(b).IsNegative() {
			return fmt.Errorf("account %s: %s is negative (%s)", a.UserID, b, a.Balance(b))
		}
	}
	if a.ReferralBalance().IsNegative() {
		return fmt.Errorf("account %s: derived referral balance is negative (%s)", a.UserID, a.ReferralBalance())
	}
	return nil
}

// Snapshot returns a read-only copy of the account for callers and audit
func (a *Account) Snapshot() *AccountSnapshot {
	return &AccountSnapshot{
		UserID:             a.UserID,
		Purchased:          a.Purchased,
		VestingAccrued:     a.VestingAccrued,
		CommissionBalance:  a.CommissionBalance,
		TournamentBalance:  a.TournamentBalance,
		TotalMXI:           a.TotalMXI,
		ReferralBalance:    a.ReferralBalance(),
		MonthlyVestingRate: a.MonthlyVestingRate,
		LastAccrualAt:      a.LastAccrualAt,
	}
}

// AccountSnapshot is a consistent view of all buckets plus derived values
type AccountSnapshot struct {
	UserID             string          `json:"user_id"`
	Purchased          decimal.Decimal `json:"purchased"`
	VestingAccrued     decimal.Decimal `json:"vesting_accrued"`
	CommissionBalance  decimal.Decimal `json:"commission_balance"`
	TournamentBalance  decimal.Decimal `json:"tournament_balance"`
	TotalMXI           decimal.Decimal `json:"total_mxi"`
	ReferralBalance    decimal.Decimal `json:"referral_balance"`
	MonthlyVestingRate decimal.Decimal `json:"monthly_vesting_rate"`
	LastAccrualAt      time.Time       `json:"last_accrual_at"`
}
