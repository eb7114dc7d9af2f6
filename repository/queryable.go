package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// parseDecimals converts NUMERIC columns selected as ::TEXT into decimals
func parseDecimals(pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		raw := pairs[i].(string)
		target := pairs[i+1].(*decimal.Decimal)
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", raw, err)
		}
		*target = d
	}
	return nil
}
