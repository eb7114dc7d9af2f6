package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase records a completed token purchase, keyed by the payment order id
type Purchase struct {
	OrderID   string          `db:"order_id"`
	UserID    string          `db:"user_id"`
	MXIAmount decimal.Decimal `db:"mxi_amount"`
	CreatedAt time.Time       `db:"created_at"`
}
