package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateMiniBattleRequest is the input of create_mini_battle
type CreateMiniBattleRequest struct {
	UserID        string          `json:"user_id"`
	GameType      string          `json:"game_type"`
	EntryFee      decimal.Decimal `json:"entry_fee"`
	MaxPlayers    int             `json:"max_players"`
	BalanceSource string          `json:"balance_source"`
}

// CreateMiniBattleResponse is returned by create_mini_battle
type CreateMiniBattleResponse struct {
	Result
	MiniBattleID int64           `json:"mini_battle_id"`
	PrizePool    decimal.Decimal `json:"prize_pool"`
}

// CreateChallengeRequest is the input of create_challenge
type CreateChallengeRequest struct {
	UserID          string          `json:"user_id"`
	GameType        string          `json:"game_type"`
	EntryFee        decimal.Decimal `json:"entry_fee"`
	BalanceSource   string          `json:"balance_source"`
	AllowRandomJoin bool            `json:"allow_random_join"`
}

// CreateChallengeResponse is returned by create_challenge
type CreateChallengeResponse struct {
	Result
	ChallengeID int64           `json:"challenge_id"`
	InviteCode  string          `json:"invite_code"`
	PrizePool   decimal.Decimal `json:"prize_pool"`
}

// CreateTournamentRequest is the input of create_tournament
type CreateTournamentRequest struct {
	GameType   string `json:"game_type"`
	MaxPlayers int    `json:"max_players"`
}

// CreateTournamentResponse is returned by create_tournament
type CreateTournamentResponse struct {
	Result
	TournamentID int64           `json:"tournament_id"`
	EntryFee     decimal.Decimal `json:"entry_fee"`
	PrizePool    decimal.Decimal `json:"prize_pool"`
}

// JoinRequest is the input of join_mini_battle, join_tournament and
// join_challenge. Challenges may be joined by invite code instead of id.
type JoinRequest struct {
	ID            int64  `json:"id,omitempty"`
	InviteCode    string `json:"invite_code,omitempty"`
	UserID        string `json:"user_id"`
	BalanceSource string `json:"balance_source"`
}

// JoinResponse is returned by the join operations
type JoinResponse struct {
	Result
	WagerID        int64  `json:"wager_id"`
	Status         string `json:"status"`
	CurrentPlayers int    `json:"current_players"`
	MaxPlayers     int    `json:"max_players"`
}

// CancelChallengeRequest is the input of cancel_challenge
type CancelChallengeRequest struct {
	ChallengeID int64  `json:"challenge_id"`
	UserID      string `json:"user_id"`
}

// CancelMiniBattleRequest is the input of cancel_mini_battle
type CancelMiniBattleRequest struct {
	MiniBattleID int64  `json:"mini_battle_id"`
	UserID       string `json:"user_id"`
}

// CancelResponse is returned by the cancel operations
type CancelResponse struct {
	Result
	RefundedParticipants int `json:"refunded_participants"`
}

// SubmitResultRequest is the input of submit_result
type SubmitResultRequest struct {
	WagerID int64  `json:"wager_id"`
	UserID  string `json:"user_id"`
	Score   int64  `json:"score"`
}

// PayoutView is one settlement credit
type PayoutView struct {
	UserID        string          `json:"user_id"`
	Rank          int             `json:"rank"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceSource string          `json:"balance_source"`
}

// SettlementView summarizes a completed wager
type SettlementView struct {
	Payouts  []PayoutView    `json:"payouts"`
	Retained decimal.Decimal `json:"retained"`
	Refunded bool            `json:"refunded"`
}

// SubmitResultResponse is returned by submit_result
type SubmitResultResponse struct {
	Result
	WagerID    int64           `json:"wager_id"`
	Status     string          `json:"status"`
	Settlement *SettlementView `json:"settlement,omitempty"`
}

// InviteCodeResponse is returned by generate_challenge_invite_code
type InviteCodeResponse struct {
	Result
	InviteCode string `json:"invite_code"`
}

// WagerView is a wager as listed to players
type WagerView struct {
	ID              int64           `json:"id"`
	Kind            string          `json:"kind"`
	GameType        string          `json:"game_type"`
	EntryFee        decimal.Decimal `json:"entry_fee"`
	MaxPlayers      int             `json:"max_players"`
	CurrentPlayers  int             `json:"current_players"`
	PrizePool       decimal.Decimal `json:"prize_pool"`
	Status          string          `json:"status"`
	CreatorID       *string         `json:"creator_id,omitempty"`
	AllowRandomJoin bool            `json:"allow_random_join"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ActiveWagersResponse lists the waiting and in progress wagers of a game type
type ActiveWagersResponse struct {
	Result
	GameType string      `json:"game_type"`
	Wagers   []WagerView `json:"wagers"`
}

// AccountView is the balance snapshot rendered by clients
type AccountView struct {
	UserID             string          `json:"user_id"`
	Purchased          decimal.Decimal `json:"purchased"`
	VestingAccrued     decimal.Decimal `json:"vesting_accrued"`
	CommissionBalance  decimal.Decimal `json:"commission_balance"`
	TournamentBalance  decimal.Decimal `json:"tournament_balance"`
	TotalMXI           decimal.Decimal `json:"total_mxi"`
	ReferralBalance    decimal.Decimal `json:"referral_balance"`
	MonthlyVestingRate decimal.Decimal `json:"monthly_vesting_rate"`
	LastAccrualAt      time.Time       `json:"last_accrual_at"`
}
