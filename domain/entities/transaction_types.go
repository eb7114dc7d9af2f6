package entities

// TransactionType represents the reason for a bucket mutation
type TransactionType string

const (
	TransactionTypePurchase           TransactionType = "purchase"
	TransactionTypeAdminCredit        TransactionType = "admin_credit"
	TransactionTypeAdminDebit         TransactionType = "admin_debit"
	TransactionTypeReferralCommission TransactionType = "referral_commission"
	TransactionTypeWagerEntry         TransactionType = "wager_entry"
	TransactionTypeWagerPrize         TransactionType = "wager_prize"
	TransactionTypeWagerRefund        TransactionType = "wager_refund"
)

// IsCommissionEligible reports whether a credit of this type may trigger a
// referral cascade. Vesting and wager settlement never do.
func (tt TransactionType) IsCommissionEligible() bool {
	return tt == TransactionTypePurchase || tt == TransactionTypeAdminCredit
}

// IsWagerRelated returns true for escrow movements
func (tt TransactionType) IsWagerRelated() bool {
	return tt == TransactionTypeWagerEntry ||
		tt == TransactionTypeWagerPrize ||
		tt == TransactionTypeWagerRefund
}
