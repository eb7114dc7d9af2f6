package application

import (
	"context"
	"fmt"
	"strings"

	"mxiledger/application/dto"
	"mxiledger/config"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
)

// CreateMiniBattle creates a 2 to 4 player battle and enrolls the creator
func (c *Core) CreateMiniBattle(ctx context.Context, req dto.CreateMiniBattleRequest) (*dto.CreateMiniBattleResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(OpCreateMiniBattle, c.clock.Now(), err)
	}
	return run(ctx, c, OpCreateMiniBattle, func(ctx context.Context, s *serviceSet) (*dto.CreateMiniBattleResponse, error) {
		detail, err := s.wagers.Create(ctx, interfaces.CreateWagerRequest{
			Kind:          entities.WagerKindMiniBattle,
			CreatorID:     &req.UserID,
			GameType:      req.GameType,
			EntryFee:      req.EntryFee,
			MaxPlayers:    req.MaxPlayers,
			BalanceSource: entities.BalanceSource(req.BalanceSource),
		})
		if err != nil {
			return nil, err
		}
		return &dto.CreateMiniBattleResponse{
			Result:       dto.OK("mini battle created"),
			MiniBattleID: detail.Wager.ID,
			PrizePool:    detail.Wager.PrizePool,
		}, nil
	})
}

// CreateChallenge creates a 4 player challenge with an invite code and enrolls
// the creator
func (c *Core) CreateChallenge(ctx context.Context, req dto.CreateChallengeRequest) (*dto.CreateChallengeResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(OpCreateChallenge, c.clock.Now(), err)
	}
	return run(ctx, c, OpCreateChallenge, func(ctx context.Context, s *serviceSet) (*dto.CreateChallengeResponse, error) {
		detail, err := s.wagers.Create(ctx, interfaces.CreateWagerRequest{
			Kind:            entities.WagerKindChallenge,
			CreatorID:       &req.UserID,
			GameType:        req.GameType,
			EntryFee:        req.EntryFee,
			MaxPlayers:      4,
			BalanceSource:   entities.BalanceSource(req.BalanceSource),
			AllowRandomJoin: req.AllowRandomJoin,
		})
		if err != nil {
			return nil, err
		}
		resp := &dto.CreateChallengeResponse{
			Result:      dto.OK("challenge created"),
			ChallengeID: detail.Wager.ID,
			PrizePool:   detail.Wager.PrizePool,
		}
		if detail.Wager.InviteCode != nil {
			resp.InviteCode = *detail.Wager.InviteCode
		}
		return resp, nil
	})
}

// CreateTournament opens a platform funded tournament at the configured fee
func (c *Core) CreateTournament(ctx context.Context, req dto.CreateTournamentRequest) (*dto.CreateTournamentResponse, error) {
	details := map[string]any{"game_type": req.GameType, "max_players": req.MaxPlayers}
	return runAudited(ctx, c, OpCreateTournament, nil, details,
		func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (*dto.CreateTournamentResponse, error) {
			detail, err := s.wagers.Create(ctx, interfaces.CreateWagerRequest{
				Kind:       entities.WagerKindTournament,
				GameType:   req.GameType,
				EntryFee:   config.Get().TournamentEntryFee,
				MaxPlayers: req.MaxPlayers,
			})
			if err != nil {
				return nil, err
			}
			record.Details["tournament_id"] = detail.Wager.ID
			return &dto.CreateTournamentResponse{
				Result:       dto.OK("tournament created"),
				TournamentID: detail.Wager.ID,
				EntryFee:     detail.Wager.EntryFee,
				PrizePool:    detail.Wager.PrizePool,
			}, nil
		})
}

// JoinMiniBattle enrolls a user in a waiting mini battle
func (c *Core) JoinMiniBattle(ctx context.Context, req dto.JoinRequest) (*dto.JoinResponse, error) {
	return c.join(ctx, OpJoinMiniBattle, entities.WagerKindMiniBattle, req, "joined mini battle")
}

// JoinTournament enrolls a user in a waiting tournament
func (c *Core) JoinTournament(ctx context.Context, req dto.JoinRequest) (*dto.JoinResponse, error) {
	return c.join(ctx, OpJoinTournament, entities.WagerKindTournament, req, "joined tournament")
}

// JoinChallenge enrolls a user in a challenge by id or invite code
func (c *Core) JoinChallenge(ctx context.Context, req dto.JoinRequest) (*dto.JoinResponse, error) {
	return c.join(ctx, OpJoinChallenge, entities.WagerKindChallenge, req, "joined challenge")
}

func (c *Core) join(ctx context.Context, operation string, kind entities.WagerKind, req dto.JoinRequest, message string) (*dto.JoinResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(operation, c.clock.Now(), err)
	}
	inviteCode := strings.TrimSpace(req.InviteCode)
	if kind != entities.WagerKindChallenge && inviteCode != "" {
		err := fmt.Errorf("%w: only challenges are joined by invite code", entities.ErrInvalidRequest)
		return nil, c.finish(operation, c.clock.Now(), err)
	}
	if req.ID == 0 && inviteCode == "" {
		err := fmt.Errorf("%w: a wager id or invite code is required", entities.ErrInvalidRequest)
		return nil, c.finish(operation, c.clock.Now(), err)
	}

	return run(ctx, c, operation, func(ctx context.Context, s *serviceSet) (*dto.JoinResponse, error) {
		detail, err := s.wagers.Join(ctx, interfaces.JoinWagerRequest{
			WagerID:       req.ID,
			InviteCode:    inviteCode,
			Kind:          kind,
			UserID:        req.UserID,
			BalanceSource: entities.BalanceSource(req.BalanceSource),
		})
		if err != nil {
			return nil, err
		}
		resp := dto.JoinResponseFromDetail(detail, message)
		return &resp, nil
	})
}

// CancelChallenge lets the creator cancel a waiting challenge
func (c *Core) CancelChallenge(ctx context.Context, req dto.CancelChallengeRequest) (*dto.CancelResponse, error) {
	return c.cancel(ctx, OpCancelChallenge, entities.WagerKindChallenge, req.ChallengeID, req.UserID)
}

// CancelMiniBattle lets the creator cancel a waiting mini battle
func (c *Core) CancelMiniBattle(ctx context.Context, req dto.CancelMiniBattleRequest) (*dto.CancelResponse, error) {
	return c.cancel(ctx, OpCancelMiniBattle, entities.WagerKindMiniBattle, req.MiniBattleID, req.UserID)
}

func (c *Core) cancel(ctx context.Context, operation string, kind entities.WagerKind, wagerID int64, userID string) (*dto.CancelResponse, error) {
	if _, err := authorizeUser(ctx, userID); err != nil {
		return nil, c.finish(operation, c.clock.Now(), err)
	}
	return run(ctx, c, operation, func(ctx context.Context, s *serviceSet) (*dto.CancelResponse, error) {
		wager, err := s.uow.WagerRepository().GetByID(ctx, wagerID)
		if err != nil {
			return nil, fmt.Errorf("failed to get wager: %w", err)
		}
		if wager == nil || wager.Kind != kind {
			return nil, fmt.Errorf("%w: %s %d", entities.ErrNotFound, kind, wagerID)
		}

		detail, err := s.wagers.Cancel(ctx, wagerID, userID)
		if err != nil {
			return nil, err
		}
		return &dto.CancelResponse{
			Result:               dto.OK(fmt.Sprintf("%s cancelled", kind)),
			RefundedParticipants: len(detail.Participants),
		}, nil
	})
}

// SubmitResult records a participant's score, settling the wager once all
// scores are in
func (c *Core) SubmitResult(ctx context.Context, req dto.SubmitResultRequest) (*dto.SubmitResultResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(OpSubmitResult, c.clock.Now(), err)
	}
	return run(ctx, c, OpSubmitResult, func(ctx context.Context, s *serviceSet) (*dto.SubmitResultResponse, error) {
		detail, settlement, err := s.wagers.SubmitResult(ctx, req.WagerID, req.UserID, req.Score)
		if err != nil {
			return nil, err
		}
		message := "result recorded"
		if settlement != nil {
			message = "result recorded, wager settled"
		}
		return &dto.SubmitResultResponse{
			Result:     dto.OK(message),
			WagerID:    detail.Wager.ID,
			Status:     string(detail.Wager.Status),
			Settlement: dto.SettlementToView(settlement),
		}, nil
	})
}

// GenerateChallengeInviteCode returns an unused invite code
func (c *Core) GenerateChallengeInviteCode(ctx context.Context) (*dto.InviteCodeResponse, error) {
	if _, ok := PrincipalFromContext(ctx); !ok {
		err := fmt.Errorf("%w: no caller identity", entities.ErrNotAuthorized)
		return nil, c.finish(OpGenerateInviteCode, c.clock.Now(), err)
	}
	return run(ctx, c, OpGenerateInviteCode, func(ctx context.Context, s *serviceSet) (*dto.InviteCodeResponse, error) {
		code, err := s.wagers.GenerateInviteCode(ctx)
		if err != nil {
			return nil, err
		}
		return &dto.InviteCodeResponse{Result: dto.OK(""), InviteCode: code}, nil
	})
}

// ListActiveWagers returns the waiting and in progress wagers of a game type
func (c *Core) ListActiveWagers(ctx context.Context, gameType string) (*dto.ActiveWagersResponse, error) {
	gameType = strings.TrimSpace(gameType)
	if gameType == "" {
		err := fmt.Errorf("%w: game type is required", entities.ErrInvalidRequest)
		return nil, c.finish(OpListActiveWagers, c.clock.Now(), err)
	}
	wagers, version, ok := c.cache.GetActiveWagers(ctx, gameType)
	if ok {
		return &dto.ActiveWagersResponse{Result: dto.OK(""), GameType: gameType, Wagers: dto.WagersToViews(wagers)}, nil
	}

	wagers, err := run(ctx, c, OpListActiveWagers, func(ctx context.Context, s *serviceSet) ([]*entities.Wager, error) {
		return s.wagers.ListActive(ctx, gameType)
	})
	if err != nil {
		return nil, err
	}
	c.cache.SetActiveWagers(ctx, gameType, wagers, version)
	return &dto.ActiveWagersResponse{Result: dto.OK(""), GameType: gameType, Wagers: dto.WagersToViews(wagers)}, nil
}

// GetCapacity reports the active wager cap of a game type and its usage
func (c *Core) GetCapacity(ctx context.Context, gameType string) (*dto.CapacityResponse, error) {
	gameType = strings.TrimSpace(gameType)
	if gameType == "" {
		err := fmt.Errorf("%w: game type is required", entities.ErrInvalidRequest)
		return nil, c.finish(OpGetCapacity, c.clock.Now(), err)
	}
	return run(ctx, c, OpGetCapacity, func(ctx context.Context, s *serviceSet) (*dto.CapacityResponse, error) {
		status, err := s.wagers.Capacity(ctx, gameType)
		if err != nil {
			return nil, err
		}
		return capacityResponse(status, ""), nil
	})
}
