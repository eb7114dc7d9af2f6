package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeWager    RelatedType = "wager"
	RelatedTypePurchase RelatedType = "purchase"
	RelatedTypeAdmin    RelatedType = "admin"
	RelatedTypeReferral RelatedType = "referral"
)

// LedgerEntry is the journal row written for every bucket mutation
type LedgerEntry struct {
	ID                  int64           `db:"id"`
	UserID              string          `db:"user_id"`
	Bucket              Bucket          `db:"bucket"`
	TransactionType     TransactionType `db:"transaction_type"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	TransactionMetadata map[string]any  `db:"transaction_metadata"`
	RelatedID           *int64          `db:"related_id"`
	RelatedType         *RelatedType    `db:"related_type"`
	CreatedAt           time.Time       `db:"created_at"`
}

// IsCredit returns true if the change amount is positive
func (e *LedgerEntry) IsCredit() bool {
	return e.ChangeAmount.IsPositive()
}

// IsDebit returns true if the change amount is negative
func (e *LedgerEntry) IsDebit() bool {
	return e.ChangeAmount.IsNegative()
}
