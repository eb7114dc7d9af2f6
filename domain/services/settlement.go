package services

import (
	"sort"

	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/shopspring/decimal"
)

// RankParticipants orders scored participants best first. Equal scores go to
// the earlier join, then the lower participant id. Unscored participants are
// left out and never win.
func RankParticipants(participants []*entities.WagerParticipant) []*entities.WagerParticipant {
	ranked := make([]*entities.WagerParticipant, 0, len(participants))
	for _, p := range participants {
		if p.HasResult() {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if *a.Score != *b.Score {
			return *a.Score > *b.Score
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// CalculatePayouts splits the prize pool over the ranking. Winner take all
// wagers pay the whole pool to rank 1; tournaments pay the fixed shares and
// retain the rest, including the shares of ranks nobody reached.
func CalculatePayouts(wager *entities.Wager, ranked []*entities.WagerParticipant) ([]interfaces.Payout, decimal.Decimal) {
	if len(ranked) == 0 {
		return nil, decimal.Zero
	}

	if wager.Kind.WinnerTakesAll() {
		winner := ranked[0]
		return []interfaces.Payout{{
			UserID:        winner.UserID,
			Rank:          1,
			Amount:        wager.PrizePool,
			BalanceSource: winner.BalanceSource,
		}}, decimal.Zero
	}

	payouts := make([]interfaces.Payout, 0, len(entities.TournamentShares))
	paid := decimal.Zero
	for i, share := range entities.TournamentShares {
		if i >= len(ranked) {
			break
		}
		amount := wager.PrizePool.Mul(share).Truncate(amountScale)
		payouts = append(payouts, interfaces.Payout{
			UserID:        ranked[i].UserID,
			Rank:          i + 1,
			Amount:        amount,
			BalanceSource: ranked[i].BalanceSource,
		})
		paid = paid.Add(amount)
	}
	return payouts, wager.PrizePool.Sub(paid)
}
