package services

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
	"mxiledger/domain/utils"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// amountScale matches the NUMERIC(30,12) columns the ledger is stored in
const amountScale = 12

type ledgerService struct {
	accountRepo    interfaces.AccountRepository
	ledgerRepo     interfaces.LedgerEntryRepository
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
	commission     *commissionService
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	accountRepo interfaces.AccountRepository,
	referralRepo interfaces.ReferralRepository,
	ledgerRepo interfaces.LedgerEntryRepository,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.LedgerService {
	s := &ledgerService{
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
	s.commission = &commissionService{
		referralRepo:   referralRepo,
		ledger:         s,
		eventPublisher: eventPublisher,
	}
	return s
}

// Credit increases a bucket and runs the commission cascade when requested
func (s *ledgerService) Credit(ctx context.Context, req interfaces.CreditRequest) (*interfaces.CreditResult, error) {
	if req.Bucket == entities.BucketVesting {
		return nil, fmt.Errorf("%w: vesting rewards are only written by accrual", entities.ErrInvalidAmount)
	}
	if req.TriggerCommission && !req.TransactionType.IsCommissionEligible() {
		return nil, fmt.Errorf("%w: %s credits do not pay commission", entities.ErrInvalidAmount, req.TransactionType)
	}

	account, entry, err := s.apply(ctx, req.UserID, req.Bucket, req.Amount, req.TransactionType, req.RelatedID, req.RelatedType, req.Metadata, (*entities.Account).Credit)
	if err != nil {
		return nil, err
	}

	result := &interfaces.CreditResult{Account: account}
	if req.TriggerCommission {
		commission, err := s.commission.Distribute(ctx, req.UserID, entry.ChangeAmount)
		if err != nil {
			return nil, err
		}
		result.Commission = commission
	}
	return result, nil
}

// Debit decreases a bucket, failing with ErrInsufficientBalance
func (s *ledgerService) Debit(ctx context.Context, req interfaces.DebitRequest) (*entities.Account, error) {
	if req.Bucket == entities.BucketVesting {
		return nil, fmt.Errorf("%w: vesting rewards cannot be debited", entities.ErrInvalidAmount)
	}

	account, _, err := s.apply(ctx, req.UserID, req.Bucket, req.Amount, req.TransactionType, req.RelatedID, req.RelatedType, req.Metadata, (*entities.Account).Debit)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Read returns a consistent snapshot of an account
func (s *ledgerService) Read(ctx context.Context, userID string) (*entities.AccountSnapshot, error) {
	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: account %s", entities.ErrNotFound, userID)
	}
	return account.Snapshot(), nil
}

type bucketMutation func(a *entities.Account, b entities.Bucket, amount decimal.Decimal) error

// apply locks the account, mutates one bucket and journals the change
func (s *ledgerService) apply(
	ctx context.Context,
	userID string,
	bucket entities.Bucket,
	amount decimal.Decimal,
	txType entities.TransactionType,
	relatedID *int64,
	relatedType *entities.RelatedType,
	metadata map[string]any,
	mutate bucketMutation,
) (*entities.Account, *entities.LedgerEntry, error) {
	amount = amount.Truncate(amountScale)
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive, got %s", entities.ErrInvalidAmount, amount)
	}

	account, err := s.accountRepo.GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if account == nil {
		return nil, nil, fmt.Errorf("%w: account %s", entities.ErrNotFound, userID)
	}

	now := s.clock.Now()
	oldRewards := account.VestingAccrued
	var accrued decimal.Decimal
	if bucket == entities.BucketPurchased {
		accrued, _ = settleVesting(account, now)
	}

	before := account.Balance(bucket)
	if err := mutate(account, bucket, amount); err != nil {
		return nil, nil, err
	}
	after := account.Balance(bucket)
	account.UpdatedAt = now

	if err := account.Validate(); err != nil {
		return nil, nil, fmt.Errorf("refusing to persist account: %w", err)
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, nil, fmt.Errorf("failed to update account: %w", err)
	}
	if accrued.IsPositive() {
		publishAccrual(s.eventPublisher, userID, oldRewards, account.VestingAccrued)
	}

	entry := &entities.LedgerEntry{
		UserID:              userID,
		Bucket:              bucket,
		TransactionType:     txType,
		ChangeAmount:        after.Sub(before),
		BalanceBefore:       before,
		BalanceAfter:        after,
		TransactionMetadata: metadata,
		RelatedID:           relatedID,
		RelatedType:         relatedType,
	}
	if err := utils.RecordLedgerChange(ctx, s.ledgerRepo, s.eventPublisher, entry); err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"userID":          userID,
		"bucket":          bucket,
		"change":          entry.ChangeAmount,
		"transactionType": txType,
	}).Debug("Applied ledger change")

	return account, entry, nil
}
