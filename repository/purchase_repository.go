package repository

import (
	"context"
	"errors"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

type purchaseRepository struct {
	q Queryable
}

func newPurchaseRepository(q Queryable) *purchaseRepository {
	return &purchaseRepository{q: q}
}

// Create inserts a purchase and reports false when the order id was already recorded
func (r *purchaseRepository) Create(ctx context.Context, purchase *entities.Purchase) (bool, error) {
	query := `
		INSERT INTO purchases (order_id, user_id, mxi_amount, created_at)
		VALUES ($1, $2, $3::NUMERIC, $4)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING order_id
	`
	var orderID string
	err := r.q.QueryRow(ctx, query,
		purchase.OrderID, purchase.UserID, purchase.MXIAmount.String(), purchase.CreatedAt,
	).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record purchase %s: %w", purchase.OrderID, database.MapError(err))
	}
	return true, nil
}

// GetByOrderID returns the purchase for an order id or nil
func (r *purchaseRepository) GetByOrderID(ctx context.Context, orderID string) (*entities.Purchase, error) {
	var p entities.Purchase
	var amount string
	err := r.q.QueryRow(ctx,
		`SELECT order_id, user_id, mxi_amount::TEXT, created_at FROM purchases WHERE order_id = $1`, orderID,
	).Scan(&p.OrderID, &p.UserID, &amount, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase %s: %w", orderID, err)
	}
	if err := parseDecimals(amount, &p.MXIAmount); err != nil {
		return nil, err
	}
	return &p, nil
}
