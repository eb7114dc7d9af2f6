package repository

import (
	"context"
	"errors"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// referralGraphLockKey is the transaction level advisory lock taken by every
// referral graph change
const referralGraphLockKey int64 = 0x6d78695f726566 // "mxi_ref"

const referralColumns = `referrer_id, referred_id, level, commission_accumulated::TEXT, created_at`

type referralRepository struct {
	q Queryable
}

// NewReferralRepository creates a referral repository on the pool
func NewReferralRepository(db *database.DB) interfaces.ReferralRepository {
	return &referralRepository{q: db.Pool}
}

func newReferralRepository(q Queryable) *referralRepository {
	return &referralRepository{q: q}
}

func scanReferralEdge(row pgx.Row) (*entities.ReferralEdge, error) {
	var edge entities.ReferralEdge
	var accumulated string
	if err := row.Scan(&edge.ReferrerID, &edge.ReferredID, &edge.Level, &accumulated, &edge.CreatedAt); err != nil {
		return nil, err
	}
	if err := parseDecimals(accumulated, &edge.CommissionAccumulated); err != nil {
		return nil, err
	}
	return &edge, nil
}

// LockGraph takes the referral graph advisory lock, held until the
// transaction ends. Cycle checks read the graph without row locks, so two
// links closing a loop from both ends must not interleave.
func (r *referralRepository) LockGraph(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, referralGraphLockKey); err != nil {
		return fmt.Errorf("failed to lock referral graph: %w", database.MapError(err))
	}
	return nil
}

// Create inserts an edge, ignoring an existing (referrer, referred) pair
func (r *referralRepository) Create(ctx context.Context, edge *entities.ReferralEdge) error {
	query := `
		INSERT INTO referral_edges (referrer_id, referred_id, level, commission_accumulated, created_at)
		VALUES ($1, $2, $3, $4::NUMERIC, $5)
		ON CONFLICT (referrer_id, referred_id) DO NOTHING
	`
	_, err := r.q.Exec(ctx, query,
		edge.ReferrerID, edge.ReferredID, edge.Level, edge.CommissionAccumulated.String(), edge.CreatedAt)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s already has a level %d ancestor", entities.ErrCorruptReferralGraph, edge.ReferredID, edge.Level)
	}
	if err != nil {
		return fmt.Errorf("failed to create referral edge %s -> %s: %w", edge.ReferrerID, edge.ReferredID, err)
	}
	return nil
}

// GetReferrer returns the level 1 edge pointing at referredID
func (r *referralRepository) GetReferrer(ctx context.Context, referredID string) (*entities.ReferralEdge, error) {
	query := `SELECT ` + referralColumns + ` FROM referral_edges WHERE referred_id = $1 AND level = 1`
	edge, err := scanReferralEdge(r.q.QueryRow(ctx, query, referredID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referrer of %s: %w", referredID, err)
	}
	return edge, nil
}

// ListByReferrer returns every edge where referrerID is the ancestor
func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID string) ([]*entities.ReferralEdge, error) {
	query := `SELECT ` + referralColumns + ` FROM referral_edges WHERE referrer_id = $1 ORDER BY level, created_at, referred_id`
	rows, err := r.q.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals of %s: %w", referrerID, err)
	}
	defer rows.Close()

	var edges []*entities.ReferralEdge
	for rows.Next() {
		edge, err := scanReferralEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral edge: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referral edges: %w", err)
	}
	return edges, nil
}

// AddCommission increments commission_accumulated, creating a missing edge
func (r *referralRepository) AddCommission(ctx context.Context, referrerID, referredID string, level int, amount decimal.Decimal) error {
	query := `
		INSERT INTO referral_edges (referrer_id, referred_id, level, commission_accumulated)
		VALUES ($1, $2, $3, $4::NUMERIC)
		ON CONFLICT (referrer_id, referred_id)
		DO UPDATE SET commission_accumulated = referral_edges.commission_accumulated + EXCLUDED.commission_accumulated
	`
	if _, err := r.q.Exec(ctx, query, referrerID, referredID, level, amount.String()); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: conflicting level %d edge for %s", entities.ErrCorruptReferralGraph, level, referredID)
		}
		return fmt.Errorf("failed to add commission on edge %s -> %s: %w", referrerID, referredID, database.MapError(err))
	}
	return nil
}
