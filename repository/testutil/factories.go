package testutil

import (
	"fmt"
	"hash/crc32"
	"time"

	"mxiledger/domain/entities"

	"github.com/shopspring/decimal"
)

// CreateTestUser creates a test user with a code derived from its id
func CreateTestUser(id string) *entities.User {
	return &entities.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		ReferralCode: fmt.Sprintf("%08X", crc32.ChecksumIEEE([]byte(id))),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

// CreateTestAccount creates an account with the default vesting rate
func CreateTestAccount(userID string) *entities.Account {
	return entities.NewAccount(userID, entities.DefaultMonthlyVestingRate, time.Now().UTC().Truncate(time.Microsecond))
}

// CreateTestAccountWithBalances creates an account with purchased and tournament funds
func CreateTestAccountWithBalances(userID string, purchased, tournament int64) *entities.Account {
	account := CreateTestAccount(userID)
	if purchased > 0 {
		_ = account.Credit(entities.BucketPurchased, decimal.NewFromInt(purchased))
	}
	if tournament > 0 {
		_ = account.Credit(entities.BucketTournament, decimal.NewFromInt(tournament))
	}
	return account
}

// CreateTestMiniBattle creates a waiting mini battle owned by creatorID
func CreateTestMiniBattle(creatorID, gameType string, fee int64, maxPlayers int) *entities.Wager {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entryFee := decimal.NewFromInt(fee)
	return &entities.Wager{
		Kind:           entities.WagerKindMiniBattle,
		GameType:       gameType,
		EntryFee:       entryFee,
		MaxPlayers:     maxPlayers,
		PrizePool:      entryFee.Mul(decimal.NewFromInt(int64(maxPlayers))),
		RetainedAmount: decimal.Zero,
		Status:         entities.WagerStatusWaiting,
		CreatorID:      &creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateTestParticipant creates a participant paying the wager's entry fee
func CreateTestParticipant(wager *entities.Wager, userID string, source entities.BalanceSource) *entities.WagerParticipant {
	return &entities.WagerParticipant{
		WagerID:       wager.ID,
		UserID:        userID,
		BalanceSource: source,
		EntryFeePaid:  wager.EntryFee,
		Prize:         decimal.Zero,
		JoinedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}
