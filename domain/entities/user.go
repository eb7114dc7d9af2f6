package entities

import (
	"strings"
	"time"
)

// User is a registered platform member. The ledger record lives in Account.
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	ReferralCode string    `db:"referral_code"`
	ReferredBy   *string   `db:"referred_by"`
	CreatedAt    time.Time `db:"created_at"`
}

// NormalizeEmail lower-cases and trims an email for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCode upper-cases and trims a referral or invite code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
