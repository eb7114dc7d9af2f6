package application

import (
	"context"

	"mxiledger/application/dto"
	"mxiledger/domain/entities"

	log "github.com/sirupsen/logrus"
)

// CalculateAndUpdateVestingRewards accrues the vesting rewards earned since
// the last accrual of one account
func (c *Core) CalculateAndUpdateVestingRewards(ctx context.Context, req dto.UserRequest) (*dto.VestingRewardsResponse, error) {
	if _, err := authorizeUser(ctx, req.UserID); err != nil {
		return nil, c.finish(OpCalculateVestingRewards, c.clock.Now(), err)
	}
	return run(ctx, c, OpCalculateVestingRewards, func(ctx context.Context, s *serviceSet) (*dto.VestingRewardsResponse, error) {
		result, err := s.vesting.Accrue(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		return &dto.VestingRewardsResponse{
			Result:         dto.OK("vesting rewards updated"),
			UserID:         result.UserID,
			OldRewards:     result.OldRewards,
			NewRewards:     result.NewRewards,
			SecondsElapsed: result.SecondsElapsed,
		}, nil
	})
}

// AccrueAll accrues vesting for every account holding purchased tokens. Each
// account is accrued in its own transaction so one failure does not hold back
// the rest. Returns the number of accounts accrued.
func (c *Core) AccrueAll(ctx context.Context) (int, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return 0, err
	}

	userIDs, err := run(ctx, c, "list_vesting_accounts", func(ctx context.Context, s *serviceSet) ([]string, error) {
		return s.uow.AccountRepository().ListUserIDsWithPurchased(ctx)
	})
	if err != nil {
		return 0, err
	}

	accrued := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return accrued, ctx.Err()
		}
		_, err := run(ctx, c, OpCalculateVestingRewards, func(ctx context.Context, s *serviceSet) (struct{}, error) {
			_, err := s.vesting.Accrue(ctx, userID)
			return struct{}{}, err
		})
		if err != nil {
			log.WithFields(log.Fields{
				"userID":    userID,
				"errorCode": entities.ErrorCode(err),
				"error":     err,
			}).Warn("Vesting accrual failed")
			continue
		}
		accrued++
	}

	log.WithFields(log.Fields{
		"accounts": len(userIDs),
		"accrued":  accrued,
	}).Info("Vesting sweep finished")
	return accrued, nil
}
