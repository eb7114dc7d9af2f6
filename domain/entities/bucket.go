package entities

import "fmt"

// Bucket names one of the four balance fields on an Account
type Bucket string

const (
	BucketPurchased  Bucket = "purchased"
	BucketVesting    Bucket = "vesting_accrued"
	BucketCommission Bucket = "commission_balance"
	BucketTournament Bucket = "tournament_balance"
)

// Valid reports whether b is a known bucket
func (b Bucket) Valid() bool {
	switch b {
	case BucketPurchased, BucketVesting, BucketCommission, BucketTournament:
		return true
	}
	return false
}

// CountsTowardTotal reports whether mutations of this bucket move total_mxi.
// Vesting rewards stay locked and are tracked outside the total.
func (b Bucket) CountsTowardTotal() bool {
	return b == BucketPurchased || b == BucketCommission || b == BucketTournament
}

// BalanceSource is the bucket a wager entry fee is drawn from
type BalanceSource string

const (
	BalanceSourceTournament BalanceSource = "tournament"
	BalanceSourceCommission BalanceSource = "commission"
)

// ParseBalanceSource validates a client supplied balance source
func ParseBalanceSource(s string) (BalanceSource, error) {
	switch BalanceSource(s) {
	case BalanceSourceTournament, BalanceSourceCommission:
		return BalanceSource(s), nil
	}
	return "", fmt.Errorf("%w: unknown balance source %q", ErrInvalidWager, s)
}

// Bucket returns the account bucket backing this source
func (s BalanceSource) Bucket() Bucket {
	if s == BalanceSourceCommission {
		return BucketCommission
	}
	return BucketTournament
}
