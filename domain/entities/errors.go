package entities

import (
	"errors"
	"fmt"
)

// Ledger and wagering error taxonomy. Callers classify with errors.Is.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrWagerFull            = errors.New("wager is full")
	ErrWagerNotJoinable     = errors.New("wager is not joinable")
	ErrCapacityExceeded     = errors.New("capacity exceeded")
	ErrCorruptReferralGraph = errors.New("corrupt referral graph")
	ErrNotAuthorized        = errors.New("not authorized")

	ErrNotFound               = errors.New("not found")
	ErrInvalidWager           = errors.New("invalid wager parameters")
	ErrAlreadyJoined          = errors.New("user already joined this wager")
	ErrWagerNotCancellable    = errors.New("wager can only be cancelled while waiting")
	ErrResultNotAccepted      = errors.New("wager is not accepting results")
	ErrResultAlreadySubmitted = errors.New("result already submitted")
	ErrReferralExists         = errors.New("user already has a referrer")
	ErrDuplicatePurchase      = errors.New("purchase already recorded")
	ErrUserExists             = errors.New("user already exists")
	ErrInvalidRequest         = errors.New("invalid request")

	// ErrLockTimeout is the only transient error; callers may retry the call.
	ErrLockTimeout = errors.New("lock timeout")

	ErrNotParticipant = fmt.Errorf("%w: user is not a participant", ErrNotAuthorized)
	ErrReferralCycle  = fmt.Errorf("%w: referral link would create a cycle", ErrCorruptReferralGraph)
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrNotParticipant, "not_participant"},
	{ErrReferralCycle, "referral_cycle"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrWagerFull, "wager_full"},
	{ErrWagerNotJoinable, "wager_not_joinable"},
	{ErrCapacityExceeded, "capacity_exceeded"},
	{ErrCorruptReferralGraph, "corrupt_referral_graph"},
	{ErrNotAuthorized, "not_authorized"},
	{ErrNotFound, "not_found"},
	{ErrInvalidWager, "invalid_wager"},
	{ErrAlreadyJoined, "already_joined"},
	{ErrWagerNotCancellable, "wager_not_cancellable"},
	{ErrResultNotAccepted, "result_not_accepted"},
	{ErrResultAlreadySubmitted, "result_already_submitted"},
	{ErrReferralExists, "referral_exists"},
	{ErrDuplicatePurchase, "duplicate_purchase"},
	{ErrUserExists, "user_exists"},
	{ErrInvalidRequest, "invalid_request"},
	{ErrLockTimeout, "lock_timeout"},
}

// ErrorCode returns a stable snake_case code for the first taxonomy error in
// the chain, or "internal" for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
