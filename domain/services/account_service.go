package services

import (
	"context"
	"fmt"

	"mxiledger/config"
	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

type accountService struct {
	config         *config.Config
	userRepo       interfaces.UserRepository
	accountRepo    interfaces.AccountRepository
	referrals      interfaces.ReferralService
	eventPublisher interfaces.EventPublisher
	clock          clockwork.Clock
}

// NewAccountService creates a new account registration service
func NewAccountService(
	userRepo interfaces.UserRepository,
	accountRepo interfaces.AccountRepository,
	referrals interfaces.ReferralService,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.AccountService {
	return &accountService{
		config:         config.Get(),
		userRepo:       userRepo,
		accountRepo:    accountRepo,
		referrals:      referrals,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// Register creates a user with a fresh referral code and a zero account,
// linking the referrer when a referral code is given
func (s *accountService) Register(ctx context.Context, req interfaces.RegisterRequest) (*interfaces.RegisterResult, error) {
	email := entities.NormalizeEmail(req.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", entities.ErrInvalidRequest)
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", entities.ErrUserExists, email)
	}

	var referrer *entities.User
	if code := entities.NormalizeCode(req.ReferralCode); code != "" {
		referrer, err = s.userRepo.GetByReferralCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to look up referral code: %w", err)
		}
		if referrer == nil {
			return nil, fmt.Errorf("%w: referral code %s", entities.ErrNotFound, code)
		}
	}

	code, err := uniqueCode(ctx, ReferralCodeLength, s.userRepo.ReferralCodeExists)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &entities.User{
		ID:           uuid.NewString(),
		Email:        email,
		ReferralCode: code,
		CreatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	account := entities.NewAccount(user.ID, s.config.DefaultMonthlyVestingRate, now)
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	result := &interfaces.RegisterResult{User: user, Account: account}
	event := events.AccountCreatedEvent{UserID: user.ID, Email: user.Email}

	if referrer != nil {
		edges, err := s.referrals.Link(ctx, user.ID, referrer.ID)
		if err != nil {
			return nil, err
		}
		result.Edges = edges
		user.ReferredBy = &referrer.ID
		event.ReferrerID = &referrer.ID
	}

	log.WithFields(log.Fields{
		"userID":   user.ID,
		"referred": referrer != nil,
	}).Info("Registered account")

	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish account created event")
	}
	return result, nil
}
