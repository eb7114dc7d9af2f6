package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAccount_Credit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		bucket    Bucket
		amount    decimal.Decimal
		wantErr   error
		wantTotal decimal.Decimal
	}{
		{name: "purchased moves total", bucket: BucketPurchased, amount: dec("10"), wantTotal: dec("10")},
		{name: "commission moves total", bucket: BucketCommission, amount: dec("2.5"), wantTotal: dec("2.5")},
		{name: "tournament moves total", bucket: BucketTournament, amount: dec("1"), wantTotal: dec("1")},
		{name: "vesting does not move total", bucket: BucketVesting, amount: dec("3"), wantTotal: decimal.Zero},
		{name: "zero amount rejected", bucket: BucketPurchased, amount: decimal.Zero, wantErr: ErrInvalidAmount},
		{name: "negative amount rejected", bucket: BucketPurchased, amount: dec("-1"), wantErr: ErrInvalidAmount},
		{name: "unknown bucket rejected", bucket: Bucket("bogus"), amount: dec("1"), wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			account := NewAccount("user-1", DefaultMonthlyVestingRate, time.Now())
			err := account.Credit(tt.bucket, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.amount.Equal(account.Balance(tt.bucket)))
			assert.True(t, tt.wantTotal.Equal(account.TotalMXI), "total %s", account.TotalMXI)
		})
	}
}

func TestAccount_Debit(t *testing.T) {
	t.Parallel()

	account := NewAccount("user-1", DefaultMonthlyVestingRate, time.Now())
	require.NoError(t, account.Credit(BucketTournament, dec("50")))

	err := account.Debit(BucketTournament, dec("50.000001"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, dec("50").Equal(account.TournamentBalance), "failed debit must not change the bucket")

	require.NoError(t, account.Debit(BucketTournament, dec("20")))
	assert.True(t, dec("30").Equal(account.TournamentBalance))
	assert.True(t, dec("30").Equal(account.TotalMXI))

	require.NoError(t, account.Debit(BucketTournament, dec("30")))
	assert.True(t, account.TournamentBalance.IsZero())

	assert.ErrorIs(t, account.Debit(BucketCommission, dec("1")), ErrInsufficientBalance)
	assert.ErrorIs(t, account.Debit(BucketCommission, dec("0")), ErrInvalidAmount)
}

func TestAccount_ReferralBalanceInvariant(t *testing.T) {
	t.Parallel()

	account := NewAccount("user-1", DefaultMonthlyVestingRate, time.Now())
	require.NoError(t, account.Credit(BucketPurchased, dec("1000")))
	require.NoError(t, account.Credit(BucketCommission, dec("50")))
	require.NoError(t, account.Credit(BucketTournament, dec("135")))
	require.NoError(t, account.Credit(BucketVesting, dec("1")))
	require.NoError(t, account.Debit(BucketCommission, dec("25")))
	require.NoError(t, account.Debit(BucketPurchased, dec("100")))

	assert.True(t, account.ReferralBalance().IsZero(), "referral balance drifted to %s", account.ReferralBalance())
	assert.NoError(t, account.Validate())

	snap := account.Snapshot()
	assert.True(t, dec("1060").Equal(snap.TotalMXI))
	assert.True(t, snap.ReferralBalance.IsZero())
}

func TestAccount_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(a *Account)
		wantErr bool
	}{
		{name: "zero account is valid", mutate: func(a *Account) {}},
		{name: "negative purchased", mutate: func(a *Account) { a.Purchased = dec("-1") }, wantErr: true},
		{name: "negative vesting", mutate: func(a *Account) { a.VestingAccrued = dec("-0.1") }, wantErr: true},
		{name: "total below bucket sum", mutate: func(a *Account) { a.CommissionBalance = dec("5") }, wantErr: true},
		{name: "total above bucket sum", mutate: func(a *Account) { a.TotalMXI = dec("5") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			account := NewAccount("user-1", DefaultMonthlyVestingRate, time.Now())
			tt.mutate(account)
			if tt.wantErr {
				assert.Error(t, account.Validate())
			} else {
				assert.NoError(t, account.Validate())
			}
		})
	}
}

func TestCommissionRate(t *testing.T) {
	t.Parallel()

	total := decimal.Zero
	for level := 1; level <= MaxReferralLevel; level++ {
		total = total.Add(CommissionRate(level))
	}
	assert.True(t, dec("0.08").Equal(total))
	assert.True(t, CommissionRate(0).IsZero())
	assert.True(t, CommissionRate(4).IsZero())
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "insufficient_balance", ErrorCode(ErrInsufficientBalance))
	assert.Equal(t, "not_participant", ErrorCode(ErrNotParticipant))
	assert.Equal(t, "referral_cycle", ErrorCode(ErrReferralCycle))
	assert.ErrorIs(t, ErrReferralCycle, ErrCorruptReferralGraph)
	assert.ErrorIs(t, ErrNotParticipant, ErrNotAuthorized)
	assert.Equal(t, "internal", ErrorCode(assert.AnError))
}
