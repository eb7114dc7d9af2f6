package services

import (
	"context"
	"fmt"
	"time"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// SecondsPerMonth is the 30 day month vesting rates are expressed against
const SecondsPerMonth = 2592000

var microsPerMonth = decimal.NewFromInt(SecondsPerMonth * 1_000_000)

type vestingService struct {
	accountRepo    interfaces.AccountRepository
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
}

// NewVestingService creates a new vesting service
func NewVestingService(
	accountRepo interfaces.AccountRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.VestingService {
	return &vestingService{
		accountRepo:    accountRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// VestingIncrement returns purchased * rate * elapsed / 30 days, computed at
// microsecond resolution with a single division
func VestingIncrement(purchased, monthlyRate decimal.Decimal, elapsedMicros int64) decimal.Decimal {
	if elapsedMicros <= 0 || !purchased.IsPositive() {
		return decimal.Zero
	}
	return purchased.Mul(monthlyRate).Mul(decimal.NewFromInt(elapsedMicros)).Div(microsPerMonth).Truncate(amountScale)
}

// settleVesting accrues the rewards owed up to now on a locked account and
// advances last_accrual_at. Any change to purchased must be preceded by it so
// the old balance is paid for the time it was held.
func settleVesting(account *entities.Account, now time.Time) (decimal.Decimal, time.Duration) {
	elapsed := now.Sub(account.LastAccrualAt)
	if elapsed <= 0 {
		return decimal.Zero, 0
	}
	increment := VestingIncrement(account.Purchased, account.MonthlyVestingRate, elapsed.Microseconds())
	account.VestingAccrued = account.VestingAccrued.Add(increment)
	account.LastAccrualAt = now
	return increment, elapsed
}

func publishAccrual(publisher interfaces.EventPublisher, userID string, oldRewards, newRewards decimal.Decimal) {
	if err := publisher.Publish(events.VestingAccruedEvent{
		UserID:     userID,
		OldRewards: oldRewards,
		NewRewards: newRewards,
	}); err != nil {
		log.WithError(err).Error("Failed to publish vesting accrued event")
	}
}

// Accrue credits the rewards earned since the last accrual. Calling it again
// without time passing changes nothing.
func (s *vestingService) Accrue(ctx context.Context, userID string) (*interfaces.AccrualResult, error) {
	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s", entities.ErrNotFound, userID)
	}

	now := s.clock.Now()
	result := &interfaces.AccrualResult{
		UserID:         userID,
		OldRewards:     account.VestingAccrued,
		NewRewards:     account.VestingAccrued,
		SecondsElapsed: decimal.Zero,
	}

	increment, elapsed := settleVesting(account, now)
	if elapsed <= 0 {
		return result, nil
	}
	account.UpdatedAt = now

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	result.NewRewards = account.VestingAccrued
	result.SecondsElapsed = decimal.NewFromInt(elapsed.Microseconds()).Shift(-6)

	if increment.IsPositive() {
		log.WithFields(log.Fields{
			"userID":    userID,
			"increment": increment,
			"seconds":   result.SecondsElapsed,
		}).Debug("Accrued vesting rewards")
		publishAccrual(s.eventPublisher, userID, result.OldRewards, result.NewRewards)
	}

	return result, nil
}

// ResetAll zeroes vesting rewards for every account in one batch
func (s *vestingService) ResetAll(ctx context.Context) (*interfaces.VestingResetResult, error) {
	affected, total, err := s.accountRepo.ResetAllVesting(ctx, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to reset vesting: %w", err)
	}

	log.WithFields(log.Fields{
		"affectedUsers": affected,
		"totalReset":    total,
	}).Warn("Reset vesting rewards for all accounts")

	if err := s.eventPublisher.Publish(events.VestingResetEvent{
		AffectedUsers:     affected,
		TotalRewardsReset: total,
	}); err != nil {
		log.WithError(err).Error("Failed to publish vesting reset event")
	}

	return &interfaces.VestingResetResult{
		AffectedUsers:     affected,
		TotalRewardsReset: total,
	}, nil
}
