package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"mxiledger/config"
	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	tournamentMaxPlayers = []int{25, 50}
	challengeMaxPlayers  = []int{4}
	miniBattleMaxPlayers = []int{2, 3, 4}
)

type wagerService struct {
	config           *config.Config
	wagerRepo        interfaces.WagerRepository
	gameSettingsRepo interfaces.GameSettingsRepository
	accountRepo      interfaces.AccountRepository
	ledger           interfaces.LedgerService
	eventPublisher   interfaces.EventPublisher
	clock            clockwork.Clock
}

// NewWagerService creates a new wager service
func NewWagerService(
	wagerRepo interfaces.WagerRepository,
	gameSettingsRepo interfaces.GameSettingsRepository,
	accountRepo interfaces.AccountRepository,
	ledger interfaces.LedgerService,
	eventPublisher interfaces.EventPublisher,
	clock clockwork.Clock,
) interfaces.WagerService {
	return &wagerService{
		config:           config.Get(),
		wagerRepo:        wagerRepo,
		gameSettingsRepo: gameSettingsRepo,
		accountRepo:      accountRepo,
		ledger:           ledger,
		eventPublisher:   eventPublisher,
		clock:            clock,
	}
}

// validateCreate checks the per kind rules and returns the prize pool
func (s *wagerService) validateCreate(req interfaces.CreateWagerRequest) (decimal.Decimal, error) {
	if strings.TrimSpace(req.GameType) == "" {
		return decimal.Zero, fmt.Errorf("%w: game type is required", entities.ErrInvalidWager)
	}
	if !req.EntryFee.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: entry fee must be positive, got %s", entities.ErrInvalidAmount, req.EntryFee)
	}

	var (
		allowed  []int
		minFee   decimal.Decimal
		maxFee   decimal.Decimal
		pool     decimal.Decimal
		maxCount = decimal.NewFromInt(int64(req.MaxPlayers))
	)
	switch req.Kind {
	case entities.WagerKindTournament:
		allowed = tournamentMaxPlayers
		minFee, maxFee = s.config.TournamentEntryFee, s.config.TournamentEntryFee
		pool = s.config.TournamentPrizePool
	case entities.WagerKindChallenge:
		allowed = challengeMaxPlayers
		minFee, maxFee = s.config.ChallengeMinFee, s.config.ChallengeMaxFee
		pool = req.EntryFee.Mul(maxCount)
	case entities.WagerKindMiniBattle:
		allowed = miniBattleMaxPlayers
		minFee, maxFee = s.config.MiniBattleMinFee, s.config.MiniBattleMaxFee
		pool = req.EntryFee.Mul(maxCount)
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown kind %q", entities.ErrInvalidWager, req.Kind)
	}

	if req.EntryFee.LessThan(minFee) || req.EntryFee.GreaterThan(maxFee) {
		return decimal.Zero, fmt.Errorf("%w: %s entry fee must be between %s and %s, got %s",
			entities.ErrInvalidAmount, req.Kind, minFee, maxFee, req.EntryFee)
	}
	if !slices.Contains(allowed, req.MaxPlayers) {
		return decimal.Zero, fmt.Errorf("%w: %s max players must be one of %v, got %d",
			entities.ErrInvalidWager, req.Kind, allowed, req.MaxPlayers)
	}

	if req.Kind.CreatorFunded() {
		if req.CreatorID == nil || *req.CreatorID == "" {
			return decimal.Zero, fmt.Errorf("%w: %s requires a creator", entities.ErrInvalidWager, req.Kind)
		}
		if _, err := entities.ParseBalanceSource(string(req.BalanceSource)); err != nil {
			return decimal.Zero, err
		}
	} else if req.CreatorID != nil {
		return decimal.Zero, fmt.Errorf("%w: tournaments have no creator", entities.ErrInvalidWager)
	}

	return pool, nil
}

// Create inserts a wager after the capacity check and enrolls the creator for
// creator-funded kinds
func (s *wagerService) Create(ctx context.Context, req interfaces.CreateWagerRequest) (*entities.WagerDetail, error) {
	pool, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	// The settings row lock serializes creates of one game type, making the
	// count and the insert atomic
	settings, err := s.gameSettingsRepo.GetForUpdate(ctx, req.GameType, s.config.DefaultMaxActiveTournaments)
	if err != nil {
		return nil, fmt.Errorf("failed to lock game settings: %w", err)
	}
	active, err := s.wagerRepo.CountActiveByGameType(ctx, req.GameType)
	if err != nil {
		return nil, fmt.Errorf("failed to count active wagers: %w", err)
	}
	if active >= settings.MaxActiveTournaments {
		return nil, fmt.Errorf("%w: %s has %d of %d active wagers",
			entities.ErrCapacityExceeded, req.GameType, active, settings.MaxActiveTournaments)
	}

	now := s.clock.Now()
	wager := &entities.Wager{
		Kind:            req.Kind,
		GameType:        req.GameType,
		EntryFee:        req.EntryFee,
		MaxPlayers:      req.MaxPlayers,
		CurrentPlayers:  0,
		PrizePool:       pool,
		RetainedAmount:  decimal.Zero,
		Status:          entities.WagerStatusWaiting,
		CreatorID:       req.CreatorID,
		AllowRandomJoin: req.AllowRandomJoin,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Kind == entities.WagerKindChallenge {
		code, err := s.GenerateInviteCode(ctx)
		if err != nil {
			return nil, err
		}
		wager.InviteCode = &code
	} else {
		wager.AllowRandomJoin = true
	}

	if err := s.wagerRepo.Create(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to create wager: %w", err)
	}

	detail := &entities.WagerDetail{Wager: wager}
	if req.Kind.CreatorFunded() {
		if err := s.enroll(ctx, detail, *req.CreatorID, req.BalanceSource); err != nil {
			return nil, err
		}
	}

	log.WithFields(log.Fields{
		"wagerID":  wager.ID,
		"kind":     wager.Kind,
		"gameType": wager.GameType,
		"entryFee": wager.EntryFee,
		"pool":     wager.PrizePool,
	}).Info("Created wager")

	s.publishState(wager, "")
	return detail, nil
}

// Join enrolls a user, debiting the entry fee from the chosen source
func (s *wagerService) Join(ctx context.Context, req interfaces.JoinWagerRequest) (*entities.WagerDetail, error) {
	if _, err := entities.ParseBalanceSource(string(req.BalanceSource)); err != nil {
		return nil, err
	}

	var (
		wager *entities.Wager
		err   error
	)
	byCode := req.InviteCode != ""
	if byCode {
		wager, err = s.wagerRepo.GetByInviteCodeForUpdate(ctx, entities.NormalizeCode(req.InviteCode))
	} else {
		wager, err = s.wagerRepo.GetByIDForUpdate(ctx, req.WagerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock wager: %w", err)
	}
	if wager == nil || (req.Kind != "" && wager.Kind != req.Kind) {
		return nil, fmt.Errorf("%w: wager", entities.ErrNotFound)
	}

	if err := wager.CanJoin(); err != nil {
		return nil, err
	}
	if wager.Kind == entities.WagerKindChallenge && !byCode && !wager.AllowRandomJoin {
		return nil, fmt.Errorf("%w: challenge %d requires an invite code", entities.ErrWagerNotJoinable, wager.ID)
	}

	participants, err := s.wagerRepo.GetParticipants(ctx, wager.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	detail := &entities.WagerDetail{Wager: wager, Participants: participants}
	if detail.Participant(req.UserID) != nil {
		return nil, fmt.Errorf("%w: wager %d", entities.ErrAlreadyJoined, wager.ID)
	}

	oldStatus := wager.Status
	if err := s.enroll(ctx, detail, req.UserID, req.BalanceSource); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"wagerID": wager.ID,
		"userID":  req.UserID,
		"players": wager.CurrentPlayers,
		"status":  wager.Status,
	}).Info("User joined wager")

	s.publishState(wager, oldStatus)
	return detail, nil
}

// enroll debits the entry fee, records the participant and advances the wager
func (s *wagerService) enroll(ctx context.Context, detail *entities.WagerDetail, userID string, source entities.BalanceSource) error {
	wager := detail.Wager
	relatedType := entities.RelatedTypeWager

	if _, err := s.ledger.Debit(ctx, interfaces.DebitRequest{
		UserID:          userID,
		Bucket:          source.Bucket(),
		Amount:          wager.EntryFee,
		TransactionType: entities.TransactionTypeWagerEntry,
		RelatedID:       &wager.ID,
		RelatedType:     &relatedType,
		Metadata:        map[string]any{"kind": string(wager.Kind), "game_type": wager.GameType},
	}); err != nil {
		return err
	}

	now := s.clock.Now()
	participant := &entities.WagerParticipant{
		WagerID:       wager.ID,
		UserID:        userID,
		BalanceSource: source,
		EntryFeePaid:  wager.EntryFee,
		Prize:         decimal.Zero,
		JoinedAt:      now,
	}
	if err := s.wagerRepo.AddParticipant(ctx, participant); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	detail.Participants = append(detail.Participants, participant)

	wager.AddPlayer(now)
	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return fmt.Errorf("failed to update wager: %w", err)
	}
	return nil
}

// SubmitResult records a participant's score and settles once every
// participant has one
func (s *wagerService) SubmitResult(ctx context.Context, wagerID int64, userID string, score int64) (*entities.WagerDetail, *interfaces.SettlementResult, error) {
	if score < 0 {
		return nil, nil, fmt.Errorf("%w: score must not be negative", entities.ErrInvalidWager)
	}

	wager, err := s.wagerRepo.GetByIDForUpdate(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock wager: %w", err)
	}
	if wager == nil {
		return nil, nil, fmt.Errorf("%w: wager %d", entities.ErrNotFound, wagerID)
	}

	participants, err := s.wagerRepo.GetParticipants(ctx, wagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get participants: %w", err)
	}
	detail := &entities.WagerDetail{Wager: wager, Participants: participants}

	participant := detail.Participant(userID)
	if participant == nil {
		return nil, nil, fmt.Errorf("%w: wager %d", entities.ErrNotParticipant, wagerID)
	}
	if !wager.AcceptsResults() {
		return nil, nil, fmt.Errorf("%w: status is %s", entities.ErrResultNotAccepted, wager.Status)
	}
	if participant.HasResult() {
		return nil, nil, fmt.Errorf("%w: wager %d", entities.ErrResultAlreadySubmitted, wagerID)
	}

	now := s.clock.Now()
	oldStatus := wager.Status
	if wager.Status == entities.WagerStatusWaiting {
		wager.Start(now)
	}

	participant.Score = &score
	participant.SubmittedAt = &now
	if err := s.wagerRepo.UpdateParticipant(ctx, participant); err != nil {
		return nil, nil, fmt.Errorf("failed to record result: %w", err)
	}
	wager.UpdatedAt = now
	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return nil, nil, fmt.Errorf("failed to update wager: %w", err)
	}
	if oldStatus != wager.Status {
		s.publishState(wager, oldStatus)
	}

	if !detail.AllResultsIn() {
		return detail, nil, nil
	}

	settlement, err := s.settle(ctx, detail)
	if err != nil {
		return nil, nil, err
	}
	return detail, settlement, nil
}

// Settle pays out an in progress wager with whatever results are in
func (s *wagerService) Settle(ctx context.Context, wagerID int64) (*interfaces.SettlementResult, error) {
	wager, err := s.wagerRepo.GetByIDForUpdate(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("%w: wager %d", entities.ErrNotFound, wagerID)
	}
	if wager.Status != entities.WagerStatusInProgress {
		return nil, fmt.Errorf("%w: status is %s", entities.ErrResultNotAccepted, wager.Status)
	}

	participants, err := s.wagerRepo.GetParticipants(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return s.settle(ctx, &entities.WagerDetail{Wager: wager, Participants: participants})
}

func (s *wagerService) settle(ctx context.Context, detail *entities.WagerDetail) (*interfaces.SettlementResult, error) {
	wager := detail.Wager
	if err := s.lockParticipantAccounts(ctx, detail); err != nil {
		return nil, err
	}

	result := &interfaces.SettlementResult{WagerID: wager.ID, Retained: decimal.Zero}
	ranked := RankParticipants(detail.Participants)

	if len(ranked) == 0 {
		if err := s.refundAll(ctx, detail); err != nil {
			return nil, err
		}
		result.Refunded = true
	} else {
		payouts, retained := CalculatePayouts(wager, ranked)
		relatedType := entities.RelatedTypeWager
		for _, payout := range payouts {
			if _, err := s.ledger.Credit(ctx, interfaces.CreditRequest{
				UserID:          payout.UserID,
				Bucket:          payout.BalanceSource.Bucket(),
				Amount:          payout.Amount,
				TransactionType: entities.TransactionTypeWagerPrize,
				RelatedID:       &wager.ID,
				RelatedType:     &relatedType,
				Metadata:        map[string]any{"rank": payout.Rank},
			}); err != nil {
				return nil, fmt.Errorf("failed to pay rank %d: %w", payout.Rank, err)
			}
			participant := detail.Participant(payout.UserID)
			participant.Prize = payout.Amount
			if err := s.wagerRepo.UpdateParticipant(ctx, participant); err != nil {
				return nil, fmt.Errorf("failed to record prize: %w", err)
			}
		}
		result.Payouts = payouts
		result.Retained = retained
	}

	if err := wager.Complete(result.Retained, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to complete wager: %w", err)
	}

	log.WithFields(log.Fields{
		"wagerID":  wager.ID,
		"kind":     wager.Kind,
		"payouts":  len(result.Payouts),
		"retained": result.Retained,
		"refunded": result.Refunded,
	}).Info("Settled wager")

	s.publishState(wager, entities.WagerStatusInProgress)
	return result, nil
}

// Cancel lets the creator cancel a waiting wager and refunds everyone
func (s *wagerService) Cancel(ctx context.Context, wagerID int64, requesterID string) (*entities.WagerDetail, error) {
	return s.cancel(ctx, wagerID, func(w *entities.Wager) error {
		if !w.IsCreator(requesterID) {
			return fmt.Errorf("%w: only the creator can cancel wager %d", entities.ErrNotAuthorized, w.ID)
		}
		return nil
	}, "cancelled by creator")
}

// ForceCancel cancels a waiting wager on behalf of the system. The wager must
// still show no activity since inactiveSince once its row is locked; a join
// that landed after it was listed keeps it open.
func (s *wagerService) ForceCancel(ctx context.Context, wagerID int64, inactiveSince time.Time, reason string) (*entities.WagerDetail, error) {
	return s.cancel(ctx, wagerID, func(w *entities.Wager) error {
		if !w.UpdatedAt.Before(inactiveSince) {
			return fmt.Errorf("%w: wager %d was active at %s", entities.ErrWagerNotCancellable, w.ID, w.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	}, reason)
}

func (s *wagerService) cancel(ctx context.Context, wagerID int64, check func(*entities.Wager) error, reason string) (*entities.WagerDetail, error) {
	wager, err := s.wagerRepo.GetByIDForUpdate(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wager: %w", err)
	}
	if wager == nil {
		return nil, fmt.Errorf("%w: wager %d", entities.ErrNotFound, wagerID)
	}
	if err := check(wager); err != nil {
		return nil, err
	}
	if wager.Status != entities.WagerStatusWaiting {
		return nil, fmt.Errorf("%w: status is %s", entities.ErrWagerNotCancellable, wager.Status)
	}

	participants, err := s.wagerRepo.GetParticipants(ctx, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	detail := &entities.WagerDetail{Wager: wager, Participants: participants}

	if err := s.lockParticipantAccounts(ctx, detail); err != nil {
		return nil, err
	}
	if err := s.refundAll(ctx, detail); err != nil {
		return nil, err
	}
	if err := wager.Cancel(reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.wagerRepo.Update(ctx, wager); err != nil {
		return nil, fmt.Errorf("failed to cancel wager: %w", err)
	}

	log.WithFields(log.Fields{
		"wagerID":  wager.ID,
		"reason":   reason,
		"refunded": len(participants),
	}).Info("Cancelled wager")

	s.publishState(wager, entities.WagerStatusWaiting)
	return detail, nil
}

func (s *wagerService) lockParticipantAccounts(ctx context.Context, detail *entities.WagerDetail) error {
	if len(detail.Participants) == 0 {
		return nil
	}
	ids := make([]string, 0, len(detail.Participants))
	for _, p := range detail.Participants {
		ids = append(ids, p.UserID)
	}
	slices.Sort(ids)
	if err := s.accountRepo.LockForUpdate(ctx, ids); err != nil {
		return fmt.Errorf("failed to lock participant accounts: %w", err)
	}
	return nil
}

// refundAll returns each entry fee to the bucket it was drawn from
func (s *wagerService) refundAll(ctx context.Context, detail *entities.WagerDetail) error {
	relatedType := entities.RelatedTypeWager
	for _, p := range detail.Participants {
		if p.Refunded || !p.EntryFeePaid.IsPositive() {
			continue
		}
		if _, err := s.ledger.Credit(ctx, interfaces.CreditRequest{
			UserID:          p.UserID,
			Bucket:          p.BalanceSource.Bucket(),
			Amount:          p.EntryFeePaid,
			TransactionType: entities.TransactionTypeWagerRefund,
			RelatedID:       &detail.Wager.ID,
			RelatedType:     &relatedType,
		}); err != nil {
			return fmt.Errorf("failed to refund %s: %w", p.UserID, err)
		}
		p.Refunded = true
		if err := s.wagerRepo.UpdateParticipant(ctx, p); err != nil {
			return fmt.Errorf("failed to mark refund: %w", err)
		}
	}
	return nil
}

// GenerateInviteCode returns an unused challenge invite code
func (s *wagerService) GenerateInviteCode(ctx context.Context) (string, error) {
	return uniqueCode(ctx, InviteCodeLength, s.wagerRepo.InviteCodeExists)
}

// ListActive returns waiting and in progress wagers of a game type
func (s *wagerService) ListActive(ctx context.Context, gameType string) ([]*entities.Wager, error) {
	wagers, err := s.wagerRepo.ListActiveByGameType(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to list active wagers: %w", err)
	}
	return wagers, nil
}

// Capacity reports the cap and current usage of a game type
func (s *wagerService) Capacity(ctx context.Context, gameType string) (*entities.CapacityStatus, error) {
	maxActive := s.config.DefaultMaxActiveTournaments
	settings, err := s.gameSettingsRepo.Get(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to get game settings: %w", err)
	}
	if settings != nil {
		maxActive = settings.MaxActiveTournaments
	}

	active, err := s.wagerRepo.CountActiveByGameType(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to count active wagers: %w", err)
	}
	return &entities.CapacityStatus{
		GameType:             gameType,
		MaxActiveTournaments: maxActive,
		Active:               active,
	}, nil
}

// ListStaleWaiting returns waiting wagers idle for at least inactiveFor
func (s *wagerService) ListStaleWaiting(ctx context.Context, inactiveFor time.Duration) ([]*entities.Wager, error) {
	wagers, err := s.wagerRepo.ListStaleWaiting(ctx, s.clock.Now().Add(-inactiveFor))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale wagers: %w", err)
	}
	return wagers, nil
}

// ListOverdue returns in progress wagers started more than settleAfter ago
func (s *wagerService) ListOverdue(ctx context.Context, settleAfter time.Duration) ([]*entities.Wager, error) {
	wagers, err := s.wagerRepo.ListInProgressStartedBefore(ctx, s.clock.Now().Add(-settleAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue wagers: %w", err)
	}
	return wagers, nil
}

func (s *wagerService) publishState(wager *entities.Wager, oldStatus entities.WagerStatus) {
	if err := s.eventPublisher.Publish(events.WagerStateChangeEvent{
		WagerID:   wager.ID,
		Kind:      wager.Kind,
		GameType:  wager.GameType,
		OldStatus: oldStatus,
		NewStatus: wager.Status,
		Players:   wager.CurrentPlayers,
	}); err != nil {
		log.WithError(err).Error("Failed to publish wager state change event")
	}
}
