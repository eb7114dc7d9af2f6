package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mxiledger/domain/entities"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankParticipants(t *testing.T) {
	wager := NewTestWager(entities.WagerKindMiniBattle, 4, 4, 10)
	early := NewTestParticipant(wager, 2, TestUser1ID, TestNow, Score(70))
	late := NewTestParticipant(wager, 1, TestUser2ID, TestNow.Add(time.Second), Score(70))
	best := NewTestParticipant(wager, 3, TestUser3ID, TestNow.Add(2*time.Second), Score(90))
	unscored := NewTestParticipant(wager, 4, TestUser4ID, TestNow.Add(-time.Hour), nil)

	ranked := RankParticipants([]*entities.WagerParticipant{late, unscored, early, best})

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{TestUser3ID, TestUser1ID, TestUser2ID}, []string{ranked[0].UserID, ranked[1].UserID, ranked[2].UserID})
}

func TestRankParticipants_SameJoinTimeFallsBackToID(t *testing.T) {
	wager := NewTestWager(entities.WagerKindMiniBattle, 2, 2, 10)
	a := NewTestParticipant(wager, 9, TestUser1ID, TestNow, Score(5))
	b := NewTestParticipant(wager, 4, TestUser2ID, TestNow, Score(5))

	ranked := RankParticipants([]*entities.WagerParticipant{a, b})
	assert.Equal(t, TestUser2ID, ranked[0].UserID)
}

func TestCalculatePayouts(t *testing.T) {
	tournament := NewTestWager(entities.WagerKindTournament, 25, 0, 3)
	tournament.PrizePool = decimal.NewFromInt(135)

	scored := func(w *entities.Wager, n int) []*entities.WagerParticipant {
		out := make([]*entities.WagerParticipant, n)
		for i := range out {
			out[i] = NewTestParticipant(w, int64(i+1), string(rune('a'+i)), TestNow.Add(time.Duration(i)*time.Second), Score(int64(100-i)))
		}
		return out
	}

	tests := []struct {
		name             string
		wager            *entities.Wager
		ranked           []*entities.WagerParticipant
		expectedAmounts  []string
		expectedRetained string
	}{
		{
			name:             "tournament with five finishers",
			wager:            tournament,
			ranked:           scored(tournament, 5),
			expectedAmounts:  []string{"67.5", "33.75", "20.25"},
			expectedRetained: "13.5",
		},
		{
			name:             "tournament with two finishers retains the third share",
			wager:            tournament,
			ranked:           scored(tournament, 2),
			expectedAmounts:  []string{"67.5", "33.75"},
			expectedRetained: "33.75",
		},
		{
			name:             "mini battle winner takes the pool",
			wager:            NewTestWager(entities.WagerKindMiniBattle, 3, 3, 10),
			ranked:           scored(NewTestWager(entities.WagerKindMiniBattle, 3, 3, 10), 3),
			expectedAmounts:  []string{"30"},
			expectedRetained: "0",
		},
		{
			name:             "no results pays nothing",
			wager:            tournament,
			ranked:           nil,
			expectedAmounts:  nil,
			expectedRetained: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payouts, retained := CalculatePayouts(tt.wager, tt.ranked)

			require.Len(t, payouts, len(tt.expectedAmounts))
			total := decimal.Zero
			for i, p := range payouts {
				assert.Equal(t, i+1, p.Rank)
				assert.True(t, decimal.RequireFromString(tt.expectedAmounts[i]).Equal(p.Amount), "rank %d got %s", p.Rank, p.Amount)
				total = total.Add(p.Amount)
			}
			assert.True(t, decimal.RequireFromString(tt.expectedRetained).Equal(retained), "retained %s", retained)
			if len(payouts) > 0 {
				assert.True(t, total.Add(retained).Equal(tt.wager.PrizePool))
			}
		})
	}
}

func TestRandomCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := RandomCode(InviteCodeLength)
		require.NoError(t, err)
		assert.Len(t, code, InviteCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected rune %q", r)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestUniqueCode(t *testing.T) {
	ctx := context.Background()

	t.Run("retries taken codes", func(t *testing.T) {
		calls := 0
		code, err := uniqueCode(ctx, 6, func(context.Context, string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		_, err := uniqueCode(ctx, 6, func(context.Context, string) (bool, error) { return true, nil })
		assert.Error(t, err)
	})

	t.Run("lookup failure", func(t *testing.T) {
		_, err := uniqueCode(ctx, 6, func(context.Context, string) (bool, error) { return false, errors.New("db down") })
		assert.ErrorContains(t, err, "db down")
	})
}
