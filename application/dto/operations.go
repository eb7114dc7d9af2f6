// Package dto holds the request and response shapes of the ledger operations.
// Field names follow the operation contract consumed by the presentation layer.
package dto

import (
	"github.com/shopspring/decimal"
)

// Result is embedded in every response
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OK returns a successful result with a message
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// UserRequest identifies the account an operation acts on
type UserRequest struct {
	UserID string `json:"user_id"`
}

// VestingRewardsResponse is returned by calculate_and_update_vesting_rewards
type VestingRewardsResponse struct {
	Result
	UserID         string          `json:"user_id"`
	OldRewards     decimal.Decimal `json:"old_rewards"`
	NewRewards     decimal.Decimal `json:"new_rewards"`
	SecondsElapsed decimal.Decimal `json:"seconds_elapsed"`
}

// ResetVestingResponse is returned by admin_reset_global_vesting_rewards
type ResetVestingResponse struct {
	Result
	AffectedUsers     int             `json:"affected_users"`
	TotalRewardsReset decimal.Decimal `json:"total_rewards_reset"`
}

// AddBalanceWithoutCommissionsRequest is the input of admin_add_balance_without_commissions
type AddBalanceWithoutCommissionsRequest struct {
	UserID    string          `json:"user_id"`
	MXIAmount decimal.Decimal `json:"mxi_amount"`
}

// AmountRequest is the input of admin_add_balance_with_commissions and admin_remove_balance
type AmountRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// BalanceChangeResponse reports the account totals after an admin adjustment
type BalanceChangeResponse struct {
	Result
	NewTotalMXI     decimal.Decimal `json:"new_total_mxi"`
	NewPurchasedMXI decimal.Decimal `json:"new_purchased_mxi"`
}

// BucketDebit is the part of an admin debit drawn from one bucket
type BucketDebit struct {
	Bucket string          `json:"bucket"`
	Amount decimal.Decimal `json:"amount"`
}

// RemoveBalanceResponse is returned by admin_remove_balance
type RemoveBalanceResponse struct {
	BalanceChangeResponse
	Debits []BucketDebit `json:"debits"`
}

// CommissionCreditResponse is returned by credits that ran the commission cascade
type CommissionCreditResponse struct {
	BalanceChangeResponse
	TotalCommissions decimal.Decimal `json:"total_commissions"`
	ReferrersPaid    int             `json:"referrers_paid"`
}

// LinkReferralRequest is the input of admin_link_referral
type LinkReferralRequest struct {
	ReferredEmail string `json:"referred_email"`
	ReferrerCode  string `json:"referrer_code"`
}

// LinkReferralResponse is returned by admin_link_referral
type LinkReferralResponse struct {
	Result
	EdgesCreated                int             `json:"edges_created"`
	TotalCommissionsDistributed decimal.Decimal `json:"total_commissions_distributed"`
}

// SetGameCapacityRequest is the input of admin_set_game_capacity
type SetGameCapacityRequest struct {
	GameType             string `json:"game_type"`
	MaxActiveTournaments int    `json:"max_active_tournaments"`
}

// CapacityResponse reports the per game type cap and its usage
type CapacityResponse struct {
	Result
	GameType             string `json:"game_type"`
	MaxActiveTournaments int    `json:"max_active_tournaments"`
	Active               int    `json:"active"`
	Available            int    `json:"available"`
}

// RegisterAccountRequest is the input of register_account
type RegisterAccountRequest struct {
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// RegisterAccountResponse is returned by register_account
type RegisterAccountResponse struct {
	Result
	UserID       string  `json:"user_id"`
	ReferralCode string  `json:"referral_code"`
	ReferrerID   *string `json:"referrer_id,omitempty"`
}

// RecordPurchaseRequest is the input of record_purchase
type RecordPurchaseRequest struct {
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	MXIAmount decimal.Decimal `json:"mxi_amount"`
}

// BalanceResponse is returned by get_balance
type BalanceResponse struct {
	Result
	Account *AccountView `json:"account"`
}
