package dto

import (
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
)

// AccountSnapshotToView converts an account snapshot to its client view
func AccountSnapshotToView(s *entities.AccountSnapshot) *AccountView {
	return &AccountView{
		UserID:             s.UserID,
		Purchased:          s.Purchased,
		VestingAccrued:     s.VestingAccrued,
		CommissionBalance:  s.CommissionBalance,
		TournamentBalance:  s.TournamentBalance,
		TotalMXI:           s.TotalMXI,
		ReferralBalance:    s.ReferralBalance,
		MonthlyVestingRate: s.MonthlyVestingRate,
		LastAccrualAt:      s.LastAccrualAt,
	}
}

// BalanceChangeFromAccount reports the totals of an account after a mutation
func BalanceChangeFromAccount(a *entities.Account, message string) BalanceChangeResponse {
	return BalanceChangeResponse{
		Result:          OK(message),
		NewTotalMXI:     a.TotalMXI,
		NewPurchasedMXI: a.Purchased,
	}
}

// WagerToView converts a wager to its list view
func WagerToView(w *entities.Wager) WagerView {
	return WagerView{
		ID:              w.ID,
		Kind:            string(w.Kind),
		GameType:        w.GameType,
		EntryFee:        w.EntryFee,
		MaxPlayers:      w.MaxPlayers,
		CurrentPlayers:  w.CurrentPlayers,
		PrizePool:       w.PrizePool,
		Status:          string(w.Status),
		CreatorID:       w.CreatorID,
		AllowRandomJoin: w.AllowRandomJoin,
		CreatedAt:       w.CreatedAt,
	}
}

// WagersToViews converts a wager list, never returning nil
func WagersToViews(wagers []*entities.Wager) []WagerView {
	views := make([]WagerView, 0, len(wagers))
	for _, w := range wagers {
		views = append(views, WagerToView(w))
	}
	return views
}

// JoinResponseFromDetail reports the wager state after a join
func JoinResponseFromDetail(detail *entities.WagerDetail, message string) JoinResponse {
	return JoinResponse{
		Result:         OK(message),
		WagerID:        detail.Wager.ID,
		Status:         string(detail.Wager.Status),
		CurrentPlayers: detail.Wager.CurrentPlayers,
		MaxPlayers:     detail.Wager.MaxPlayers,
	}
}

// SettlementToView converts a settlement result, nil stays nil
func SettlementToView(r *interfaces.SettlementResult) *SettlementView {
	if r == nil {
		return nil
	}
	view := &SettlementView{
		Payouts:  make([]PayoutView, 0, len(r.Payouts)),
		Retained: r.Retained,
		Refunded: r.Refunded,
	}
	for _, p := range r.Payouts {
		view.Payouts = append(view.Payouts, PayoutView{
			UserID:        p.UserID,
			Rank:          p.Rank,
			Amount:        p.Amount,
			BalanceSource: string(p.BalanceSource),
		})
	}
	return view
}
