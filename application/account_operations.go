package application

import (
	"context"
	"fmt"
	"strings"

	"mxiledger/application/dto"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
)

// RegisterAccount creates a user and a zero-initialized account, linking the
// owner of the referral code when one is given
func (c *Core) RegisterAccount(ctx context.Context, req dto.RegisterAccountRequest) (*dto.RegisterAccountResponse, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return nil, c.finish(OpRegisterAccount, c.clock.Now(), err)
	}
	return run(ctx, c, OpRegisterAccount, func(ctx context.Context, s *serviceSet) (*dto.RegisterAccountResponse, error) {
		result, err := s.accounts.Register(ctx, interfaces.RegisterRequest{
			Email:        req.Email,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			return nil, err
		}
		return &dto.RegisterAccountResponse{
			Result:       dto.OK("account registered"),
			UserID:       result.User.ID,
			ReferralCode: result.User.ReferralCode,
			ReferrerID:   result.User.ReferredBy,
		}, nil
	})
}

// RecordPurchase credits a completed token purchase to purchased and runs the
// referral cascade. An order id is credited at most once.
func (c *Core) RecordPurchase(ctx context.Context, req dto.RecordPurchaseRequest) (*dto.CommissionCreditResponse, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return nil, c.finish(OpRecordPurchase, c.clock.Now(), err)
	}
	return run(ctx, c, OpRecordPurchase, func(ctx context.Context, s *serviceSet) (*dto.CommissionCreditResponse, error) {
		orderID := strings.TrimSpace(req.OrderID)
		if orderID == "" {
			return nil, fmt.Errorf("%w: order id is required", entities.ErrInvalidRequest)
		}
		if !req.MXIAmount.IsPositive() {
			return nil, fmt.Errorf("%w: purchase amount must be positive, got %s", entities.ErrInvalidAmount, req.MXIAmount)
		}

		created, err := s.uow.PurchaseRepository().Create(ctx, &entities.Purchase{
			OrderID:   orderID,
			UserID:    req.UserID,
			MXIAmount: req.MXIAmount,
			CreatedAt: c.clock.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record purchase: %w", err)
		}
		if !created {
			return nil, fmt.Errorf("%w: order %s", entities.ErrDuplicatePurchase, orderID)
		}

		result, err := s.ledger.Credit(ctx, interfaces.CreditRequest{
			UserID:            req.UserID,
			Bucket:            entities.BucketPurchased,
			Amount:            req.MXIAmount,
			TransactionType:   entities.TransactionTypePurchase,
			TriggerCommission: true,
			Metadata:          map[string]any{"order_id": orderID},
		})
		if err != nil {
			return nil, err
		}
		return &dto.CommissionCreditResponse{
			BalanceChangeResponse: dto.BalanceChangeFromAccount(result.Account, "purchase recorded"),
			TotalCommissions:      result.Commission.TotalPaid(),
			ReferrersPaid:         result.Commission.ReferrersPaid(),
		}, nil
	})
}

// GetBalance returns a consistent snapshot of an account
func (c *Core) GetBalance(ctx context.Context, req dto.UserRequest) (*dto.BalanceResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(OpGetBalance, c.clock.Now(), err)
	}
	snapshot, version, ok := c.cache.GetAccount(ctx, req.UserID)
	if ok {
		return &dto.BalanceResponse{Result: dto.OK(""), Account: dto.AccountSnapshotToView(snapshot)}, nil
	}

	snapshot, err := run(ctx, c, OpGetBalance, func(ctx context.Context, s *serviceSet) (*entities.AccountSnapshot, error) {
		return s.ledger.Read(ctx, req.UserID)
	})
	if err != nil {
		return nil, err
	}
	c.cache.SetAccount(ctx, snapshot, version)
	return &dto.BalanceResponse{Result: dto.OK(""), Account: dto.AccountSnapshotToView(snapshot)}, nil
}
