package events

import (
	"mxiledger/domain/entities"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange    EventType = "balance_change"
	EventTypeAccountCreated   EventType = "account_created"
	EventTypeCommissionPaid   EventType = "commission_paid"
	EventTypeVestingAccrued   EventType = "vesting_accrued"
	EventTypeVestingReset     EventType = "vesting_reset"
	EventTypeWagerStateChange EventType = "wager_state_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a bucket mutation that was committed
type BalanceChangeEvent struct {
	UserID          string                   `json:"user_id"`
	Bucket          entities.Bucket          `json:"bucket"`
	OldBalance      decimal.Decimal          `json:"old_balance"`
	NewBalance      decimal.Decimal          `json:"new_balance"`
	ChangeAmount    decimal.Decimal          `json:"change_amount"`
	TransactionType entities.TransactionType `json:"transaction_type"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent represents a newly registered user
type AccountCreatedEvent struct {
	UserID     string  `json:"user_id"`
	Email      string  `json:"email"`
	ReferrerID *string `json:"referrer_id,omitempty"`
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// CommissionPaidEvent represents a completed referral cascade
type CommissionPaidEvent struct {
	BeneficiaryID string          `json:"beneficiary_id"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	Total         decimal.Decimal `json:"total"`
	ReferrersPaid int             `json:"referrers_paid"`
}

func (e CommissionPaidEvent) Type() EventType {
	return EventTypeCommissionPaid
}

// VestingAccruedEvent represents a vesting increment
type VestingAccruedEvent struct {
	UserID     string          `json:"user_id"`
	OldRewards decimal.Decimal `json:"old_rewards"`
	NewRewards decimal.Decimal `json:"new_rewards"`
}

func (e VestingAccruedEvent) Type() EventType {
	return EventTypeVestingAccrued
}

// VestingResetEvent represents the global vesting reset
type VestingResetEvent struct {
	AffectedUsers     int             `json:"affected_users"`
	TotalRewardsReset decimal.Decimal `json:"total_rewards_reset"`
}

func (e VestingResetEvent) Type() EventType {
	return EventTypeVestingReset
}

// WagerStateChangeEvent represents a wager lifecycle transition.
// OldStatus is empty for a newly created wager.
type WagerStateChangeEvent struct {
	WagerID   int64                `json:"wager_id"`
	Kind      entities.WagerKind   `json:"kind"`
	GameType  string               `json:"game_type"`
	OldStatus entities.WagerStatus `json:"old_status"`
	NewStatus entities.WagerStatus `json:"new_status"`
	Players   int                  `json:"players"`
}

func (e WagerStateChangeEvent) Type() EventType {
	return EventTypeWagerStateChange
}

// AllEventTypes lists every event the service emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeAccountCreated,
		EventTypeCommissionPaid,
		EventTypeVestingAccrued,
		EventTypeVestingReset,
		EventTypeWagerStateChange,
	}
}
