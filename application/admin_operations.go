package application

import (
	"context"
	"fmt"
	"strings"

	"mxiledger/application/dto"
	"mxiledger/config"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/shopspring/decimal"
)

// Operation names as exposed to the presentation layer
const (
	OpCalculateVestingRewards     = "calculate_and_update_vesting_rewards"
	OpResetGlobalVestingRewards   = "admin_reset_global_vesting_rewards"
	OpAddBalanceWithoutCommission = "admin_add_balance_without_commissions"
	OpAddBalanceWithCommission    = "admin_add_balance_with_commissions"
	OpRemoveBalance               = "admin_remove_balance"
	OpLinkReferral                = "admin_link_referral"
	OpSetGameCapacity             = "admin_set_game_capacity"
	OpCreateMiniBattle            = "create_mini_battle"
	OpCreateChallenge             = "create_challenge"
	OpCreateTournament            = "create_tournament"
	OpJoinMiniBattle              = "join_mini_battle"
	OpJoinTournament              = "join_tournament"
	OpJoinChallenge               = "join_challenge"
	OpCancelChallenge             = "cancel_challenge"
	OpCancelMiniBattle            = "cancel_mini_battle"
	OpSubmitResult                = "submit_result"
	OpGenerateInviteCode          = "generate_challenge_invite_code"
	OpRegisterAccount             = "register_account"
	OpRecordPurchase              = "record_purchase"
	OpGetBalance                  = "get_balance"
	OpListActiveWagers            = "list_active_wagers"
	OpGetCapacity                 = "get_capacity"
)

// adminDebitOrder is the order in which admin debits drain buckets
var adminDebitOrder = []entities.Bucket{
	entities.BucketPurchased,
	entities.BucketCommission,
	entities.BucketTournament,
}

func amountDetails(amount decimal.Decimal) map[string]any {
	return map[string]any{"amount": amount.String()}
}

// AdminAddBalanceWithoutCommissions credits purchased without the referral cascade
func (c *Core) AdminAddBalanceWithoutCommissions(ctx context.Context, req dto.AddBalanceWithoutCommissionsRequest) (*dto.BalanceChangeResponse, error) {
	return runAudited(ctx, c, OpAddBalanceWithoutCommission, &req.UserID, amountDetails(req.MXIAmount),
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.BalanceChangeResponse, error) {
			result, err := c.adminCredit(ctx, s, record, req.UserID, req.MXIAmount, false)
			if err != nil {
				return nil, err
			}
			resp := dto.BalanceChangeFromAccount(result.Account, "balance added")
			return &resp, nil
		})
}

// AdminAddBalanceWithCommissions credits purchased and runs the referral cascade
// for the same amount
func (c *Core) AdminAddBalanceWithCommissions(ctx context.Context, req dto.AmountRequest) (*dto.CommissionCreditResponse, error) {
	return runAudited(ctx, c, OpAddBalanceWithCommission, &req.UserID, amountDetails(req.Amount),
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.CommissionCreditResponse, error) {
			result, err := c.adminCredit(ctx, s, record, req.UserID, req.Amount, true)
			if err != nil {
				return nil, err
			}
			record.Details["total_commissions"] = result.Commission.TotalPaid().String()
			record.Details["referrers_paid"] = result.Commission.ReferrersPaid()
			return &dto.CommissionCreditResponse{
				BalanceChangeResponse: dto.BalanceChangeFromAccount(result.Account, "balance added with commissions"),
				TotalCommissions:      result.Commission.TotalPaid(),
				ReferrersPaid:         result.Commission.ReferrersPaid(),
			}, nil
		})
}

func (c *Core) adminCredit(
	ctx context.Context,
	s *serviceSet,
	record *entities.AuditRecord,
	userID string,
	amount decimal.Decimal,
	withCommission bool,
) (*interfaces.CreditResult, error) {
	before, err := s.ledger.Read(ctx, userID)
	if err != nil {
		return nil, err
	}
	record.OldBalance = before

	result, err := s.ledger.Credit(ctx, interfaces.CreditRequest{
		UserID:            userID,
		Bucket:            entities.BucketPurchased,
		Amount:            amount,
		TransactionType:   entities.TransactionTypeAdminCredit,
		TriggerCommission: withCommission,
		Metadata:          map[string]any{"operator_id": record.OperatorID},
	})
	if err != nil {
		return nil, err
	}
	record.NewBalance = result.Account.Snapshot()
	return result, nil
}

// AdminRemoveBalance debits purchased, then commission, then tournament
// winnings until amount is covered
func (c *Core) AdminRemoveBalance(ctx context.Context, req dto.AmountRequest) (*dto.RemoveBalanceResponse, error) {
	return runAudited(ctx, c, OpRemoveBalance, &req.UserID, amountDetails(req.Amount),
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.RemoveBalanceResponse, error) {
			if !req.Amount.IsPositive() {
				return nil, fmt.Errorf("%w: amount must be positive, got %s", entities.ErrInvalidAmount, req.Amount)
			}

			account, err := s.uow.AccountRepository().GetByUserIDForUpdate(ctx, req.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to lock account: %w", err)
			}
			if account == nil {
				return nil, fmt.Errorf("%w: account %s", entities.ErrNotFound, req.UserID)
			}
			record.OldBalance = account.Snapshot()

			if req.Amount.GreaterThan(account.SpendableTotal()) {
				return nil, fmt.Errorf("%w: %s available, %s requested",
					entities.ErrInsufficientBalance, account.SpendableTotal(), req.Amount)
			}

			remaining := req.Amount
			debits := make([]dto.BucketDebit, 0, len(adminDebitOrder))
			for _, bucket := range adminDebitOrder {
				if !remaining.IsPositive() {
					break
				}
				take := decimal.Min(remaining, account.Balance(bucket))
				if !take.IsPositive() {
					continue
				}
				account, err = s.ledger.Debit(ctx, interfaces.DebitRequest{
					UserID:          req.UserID,
					Bucket:          bucket,
					Amount:          take,
					TransactionType: entities.TransactionTypeAdminDebit,
					Metadata:        map[string]any{"operator_id": record.OperatorID},
				})
				if err != nil {
					return nil, err
				}
				remaining = remaining.Sub(take)
				debits = append(debits, dto.BucketDebit{Bucket: string(bucket), Amount: take})
			}

			record.NewBalance = account.Snapshot()
			record.Details["debits"] = debits
			return &dto.RemoveBalanceResponse{
				BalanceChangeResponse: dto.BalanceChangeFromAccount(account, "balance removed"),
				Debits:                debits,
			}, nil
		})
}

// AdminResetGlobalVestingRewards zeroes vesting rewards for every account
func (c *Core) AdminResetGlobalVestingRewards(ctx context.Context) (*dto.ResetVestingResponse, error) {
	return runAudited(ctx, c, OpResetGlobalVestingRewards, nil, map[string]any{},
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.ResetVestingResponse, error) {
			result, err := s.vesting.ResetAll(ctx)
			if err != nil {
				return nil, err
			}
			record.Details["affected_users"] = result.AffectedUsers
			record.Details["total_rewards_reset"] = result.TotalRewardsReset.String()
			return &dto.ResetVestingResponse{
				Result:            dto.OK(fmt.Sprintf("vesting rewards reset for %d users", result.AffectedUsers)),
				AffectedUsers:     result.AffectedUsers,
				TotalRewardsReset: result.TotalRewardsReset,
			}, nil
		})
}

// AdminLinkReferral links a registered user to the owner of a referral code
// and distributes commission on the purchases the user already made
func (c *Core) AdminLinkReferral(ctx context.Context, req dto.LinkReferralRequest) (*dto.LinkReferralResponse, error) {
	details := map[string]any{
		"referred_email": entities.NormalizeEmail(req.ReferredEmail),
		"referrer_code":  entities.NormalizeCode(req.ReferrerCode),
	}
	return runAudited(ctx, c, OpLinkReferral, nil, details,
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.LinkReferralResponse, error) {
			users := s.uow.UserRepository()

			referred, err := users.GetByEmail(ctx, entities.NormalizeEmail(req.ReferredEmail))
			if err != nil {
				return nil, fmt.Errorf("failed to look up referred user: %w", err)
			}
			if referred == nil {
				return nil, fmt.Errorf("%w: no user with email %q", entities.ErrNotFound, req.ReferredEmail)
			}
			record.TargetUserID = &referred.ID

			referrer, err := users.GetByReferralCode(ctx, entities.NormalizeCode(req.ReferrerCode))
			if err != nil {
				return nil, fmt.Errorf("failed to look up referrer: %w", err)
			}
			if referrer == nil {
				return nil, fmt.Errorf("%w: no user with referral code %q", entities.ErrNotFound, req.ReferrerCode)
			}

			edges, err := s.referrals.Link(ctx, referred.ID, referrer.ID)
			if err != nil {
				return nil, err
			}

			account, err := s.ledger.Read(ctx, referred.ID)
			if err != nil {
				return nil, err
			}
			record.OldBalance = account

			total := decimal.Zero
			if account.Purchased.IsPositive() {
				commission, err := s.commission.Distribute(ctx, referred.ID, account.Purchased)
				if err != nil {
					return nil, err
				}
				total = commission.TotalPaid()
			}

			record.Details["referrer_id"] = referrer.ID
			record.Details["edges_created"] = len(edges)
			record.Details["total_commissions_distributed"] = total.String()
			return &dto.LinkReferralResponse{
				Result:                      dto.OK(fmt.Sprintf("%s linked to %s", referred.Email, referrer.ReferralCode)),
				EdgesCreated:                len(edges),
				TotalCommissionsDistributed: total,
			}, nil
		})
}

// AdminSetGameCapacity changes the active wager cap of a game type
func (c *Core) AdminSetGameCapacity(ctx context.Context, req dto.SetGameCapacityRequest) (*dto.CapacityResponse, error) {
	details := map[string]any{
		"game_type":              req.GameType,
		"max_active_tournaments": req.MaxActiveTournaments,
	}
	return runAudited(ctx, c, OpSetGameCapacity, nil, details,
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.CapacityResponse, error) {
			gameType := strings.TrimSpace(req.GameType)
			if gameType == "" || req.MaxActiveTournaments < 0 {
				return nil, fmt.Errorf("%w: game type and a non-negative cap are required", entities.ErrInvalidRequest)
			}

			repo := s.uow.GameSettingsRepository()
			settings, err := repo.GetForUpdate(ctx, gameType, config.Get().DefaultMaxActiveTournaments)
			if err != nil {
				return nil, err
			}
			record.Details["previous_max_active_tournaments"] = settings.MaxActiveTournaments

			settings.MaxActiveTournaments = req.MaxActiveTournaments
			settings.UpdatedAt = c.clock.Now()
			if err := repo.Upsert(ctx, settings); err != nil {
				return nil, err
			}

			status, err := s.wagers.Capacity(ctx, gameType)
			if err != nil {
				return nil, err
			}
			return capacityResponse(status, "capacity updated"), nil
		})
}

func capacityResponse(status *entities.CapacityStatus, message string) *dto.CapacityResponse {
	return &dto.CapacityResponse{
		Result:               dto.OK(message),
		GameType:             status.GameType,
		MaxActiveTournaments: status.MaxActiveTournaments,
		Active:               status.Active,
		Available:            status.Available(),
	}
}
