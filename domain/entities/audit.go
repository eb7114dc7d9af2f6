package entities

import "time"

// AuditOutcome records whether an audited operation succeeded
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "success"
	AuditOutcomeFailure AuditOutcome = "failure"
)

// AuditRecord is the persisted trail of one privileged operation
type AuditRecord struct {
	ID           int64            `db:"id" json:"id"`
	Operation    string           `db:"operation" json:"operation"`
	OperatorID   string           `db:"operator_id" json:"operator_id"`
	TargetUserID *string          `db:"target_user_id" json:"target_user_id,omitempty"`
	Outcome      AuditOutcome     `db:"outcome" json:"outcome"`
	ErrorMessage *string          `db:"error_message" json:"error_message,omitempty"`
	OldBalance   *AccountSnapshot `db:"old_balance" json:"old_balance,omitempty"`
	NewBalance   *AccountSnapshot `db:"new_balance" json:"new_balance,omitempty"`
	Details      map[string]any   `db:"details" json:"details,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
