package services

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type commissionService struct {
	referralRepo   interfaces.ReferralRepository
	ledger         interfaces.LedgerService
	eventPublisher interfaces.EventPublisher
}

// NewCommissionService creates a commission service that pays through ledger
func NewCommissionService(
	referralRepo interfaces.ReferralRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
) interfaces.CommissionService {
	return &commissionService{
		referralRepo:   referralRepo,
		ledger:         ledger,
		eventPublisher: eventPublisher,
	}
}

// Distribute pays up to three ancestors of the beneficiary. The chain is
// resolved before any payment so a cycle never leaves a partial cascade.
func (s *commissionService) Distribute(ctx context.Context, beneficiaryID string, baseAmount decimal.Decimal) (*entities.CommissionResult, error) {
	if !baseAmount.IsPositive() {
		return nil, fmt.Errorf("%w: commission base must be positive, got %s", entities.ErrInvalidAmount, baseAmount)
	}

	chain, err := s.ancestors(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}

	result := &entities.CommissionResult{
		BeneficiaryID: beneficiaryID,
		BaseAmount:    baseAmount,
		Total:         decimal.Zero,
	}
	relatedType := entities.RelatedTypeReferral

	for i, referrerID := range chain {
		level := i + 1
		rate := entities.CommissionRate(level)
		amount := baseAmount.Mul(rate).Truncate(amountScale)
		if !amount.IsPositive() {
			continue
		}

		if _, err := s.ledger.Credit(ctx, interfaces.CreditRequest{
			UserID:          referrerID,
			Bucket:          entities.BucketCommission,
			Amount:          amount,
			TransactionType: entities.TransactionTypeReferralCommission,
			RelatedType:     &relatedType,
			Metadata: map[string]any{
				"beneficiary_id": beneficiaryID,
				"level":          level,
				"base_amount":    baseAmount.String(),
			},
		}); err != nil {
			return nil, fmt.Errorf("failed to pay level %d commission: %w", level, err)
		}
		if err := s.referralRepo.AddCommission(ctx, referrerID, beneficiaryID, level, amount); err != nil {
			return nil, fmt.Errorf("failed to record level %d commission: %w", level, err)
		}

		result.Levels[i] = &entities.LevelPayment{
			Level:      level,
			ReferrerID: referrerID,
			Rate:       rate,
			Amount:     amount,
		}
		result.Total = result.Total.Add(amount)
	}

	if result.ReferrersPaid() > 0 {
		log.WithFields(log.Fields{
			"beneficiaryID": beneficiaryID,
			"base":          baseAmount,
			"total":         result.Total,
			"referrers":     result.ReferrersPaid(),
		}).Info("Distributed referral commission")

		if err := s.eventPublisher.Publish(events.CommissionPaidEvent{
			BeneficiaryID: beneficiaryID,
			BaseAmount:    baseAmount,
			Total:         result.Total,
			ReferrersPaid: result.ReferrersPaid(),
		}); err != nil {
			log.WithError(err).Error("Failed to publish commission paid event")
		}
	}

	return result, nil
}

// ancestors walks level-1 edges upward and returns at most MaxReferralLevel
// referrer ids, nearest first
func (s *commissionService) ancestors(ctx context.Context, userID string) ([]string, error) {
	visited := map[string]bool{userID: true}
	chain := make([]string, 0, entities.MaxReferralLevel)

	current := userID
	for len(chain) < entities.MaxReferralLevel {
		edge, err := s.referralRepo.GetReferrer(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("failed to get referrer of %s: %w", current, err)
		}
		if edge == nil {
			break
		}
		if visited[edge.ReferrerID] {
			return nil, fmt.Errorf("%w: %s reached twice from %s", entities.ErrCorruptReferralGraph, edge.ReferrerID, userID)
		}
		visited[edge.ReferrerID] = true
		chain = append(chain, edge.ReferrerID)
		current = edge.ReferrerID
	}
	return chain, nil
}
