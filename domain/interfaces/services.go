package interfaces

import (
	"context"
	"time"

	"mxiledger/domain/entities"

	"github.com/shopspring/decimal"
)

// CreditRequest describes a single ledger credit
type CreditRequest struct {
	UserID          string
	Bucket          entities.Bucket
	Amount          decimal.Decimal
	TransactionType entities.TransactionType
	// TriggerCommission runs the referral cascade for the same amount after
	// the credit. Only commission-eligible transaction types may set it.
	TriggerCommission bool
	RelatedID         *int64
	RelatedType       *entities.RelatedType
	Metadata          map[string]any
}

// CreditResult is the account after a credit plus any cascade it caused
type CreditResult struct {
	Account    *entities.Account
	Commission *entities.CommissionResult
}

// DebitRequest describes a single ledger debit
type DebitRequest struct {
	UserID          string
	Bucket          entities.Bucket
	Amount          decimal.Decimal
	TransactionType entities.TransactionType
	RelatedID       *int64
	RelatedType     *entities.RelatedType
	Metadata        map[string]any
}

// LedgerService is the only writer of account buckets other than vesting
type LedgerService interface {
	// Credit increases a bucket and optionally runs the commission cascade
	Credit(ctx context.Context, req CreditRequest) (*CreditResult, error)

	// Debit decreases a bucket, failing with ErrInsufficientBalance
	Debit(ctx context.Context, req DebitRequest) (*entities.Account, error)

	// Read returns a consistent snapshot of an account
	Read(ctx context.Context, userID string) (*entities.AccountSnapshot, error)
}

// AccrualResult is the outcome of one vesting accrual call
type AccrualResult struct {
	UserID         string          `json:"user_id"`
	OldRewards     decimal.Decimal `json:"old_rewards"`
	NewRewards     decimal.Decimal `json:"new_rewards"`
	SecondsElapsed decimal.Decimal `json:"seconds_elapsed"`
}

// VestingResetResult is the outcome of the global vesting reset
type VestingResetResult struct {
	AffectedUsers     int             `json:"affected_users"`
	TotalRewardsReset decimal.Decimal `json:"total_rewards_reset"`
}

// VestingService computes time based rewards on the purchased bucket
type VestingService interface {
	// Accrue credits the rewards earned since the last accrual
	Accrue(ctx context.Context, userID string) (*AccrualResult, error)

	// ResetAll zeroes vesting rewards for every account in one batch
	ResetAll(ctx context.Context) (*VestingResetResult, error)
}

// CommissionService distributes the referral cascade
type CommissionService interface {
	// Distribute pays up to three ancestors of the beneficiary
	Distribute(ctx context.Context, beneficiaryID string, baseAmount decimal.Decimal) (*entities.CommissionResult, error)
}

// ReferralService maintains the referral graph
type ReferralService interface {
	// Link makes referrerID the direct referrer of referredID and derives the
	// transitive edges. Returns the edges created.
	Link(ctx context.Context, referredID, referrerID string) ([]*entities.ReferralEdge, error)
}

// CreateWagerRequest describes a new wager
type CreateWagerRequest struct {
	Kind            entities.WagerKind
	CreatorID       *string
	GameType        string
	EntryFee        decimal.Decimal
	MaxPlayers      int
	BalanceSource   entities.BalanceSource
	AllowRandomJoin bool
}

// JoinWagerRequest describes a join by id or, for challenges, by invite code
type JoinWagerRequest struct {
	WagerID       int64
	InviteCode    string
	Kind          entities.WagerKind
	UserID        string
	BalanceSource entities.BalanceSource
}

// Payout is one credit made during settlement
type Payout struct {
	UserID        string                 `json:"user_id"`
	Rank          int                    `json:"rank"`
	Amount        decimal.Decimal        `json:"amount"`
	BalanceSource entities.BalanceSource `json:"balance_source"`
}

// SettlementResult describes a completed wager
type SettlementResult struct {
	WagerID  int64           `json:"wager_id"`
	Payouts  []Payout        `json:"payouts"`
	Retained decimal.Decimal `json:"retained"`
	Refunded bool            `json:"refunded"`
}

// WagerService owns the escrow lifecycle of every wager variant
type WagerService interface {
	Create(ctx context.Context, req CreateWagerRequest) (*entities.WagerDetail, error)
	Join(ctx context.Context, req JoinWagerRequest) (*entities.WagerDetail, error)
	SubmitResult(ctx context.Context, wagerID int64, userID string, score int64) (*entities.WagerDetail, *SettlementResult, error)
	Settle(ctx context.Context, wagerID int64) (*SettlementResult, error)
	Cancel(ctx context.Context, wagerID int64, requesterID string) (*entities.WagerDetail, error)
	ForceCancel(ctx context.Context, wagerID int64, inactiveSince time.Time, reason string) (*entities.WagerDetail, error)
	GenerateInviteCode(ctx context.Context) (string, error)
	ListActive(ctx context.Context, gameType string) ([]*entities.Wager, error)
	Capacity(ctx context.Context, gameType string) (*entities.CapacityStatus, error)
	ListStaleWaiting(ctx context.Context, inactiveFor time.Duration) ([]*entities.Wager, error)
	ListOverdue(ctx context.Context, settleAfter time.Duration) ([]*entities.Wager, error)
}

// RegisterRequest describes a new platform member
type RegisterRequest struct {
	Email        string
	ReferralCode string // optional code of the referring user
}

// RegisterResult is the user and zero-initialized account created
type RegisterResult struct {
	User    *entities.User
	Account *entities.Account
	Edges   []*entities.ReferralEdge
}

// AccountService registers users and their ledger accounts
type AccountService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error)
}
