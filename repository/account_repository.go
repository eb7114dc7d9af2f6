package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"mxiledger/database"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `
	user_id,
	purchased::TEXT, vesting_accrued::TEXT, commission_balance::TEXT,
	tournament_balance::TEXT, total_mxi::TEXT, monthly_vesting_rate::TEXT,
	last_accrual_at, created_at, updated_at`

type accountRepository struct {
	q Queryable
}

// NewAccountRepository creates an account repository on the pool
func NewAccountRepository(db *database.DB) interfaces.AccountRepository {
	return &accountRepository{q: db.Pool}
}

func newAccountRepository(q Queryable) *accountRepository {
	return &accountRepository{q: q}
}

func scanAccount(row pgx.Row) (*entities.Account, error) {
	var a entities.Account
	var purchased, vesting, commission, tournament, total, rate string
	if err := row.Scan(
		&a.UserID,
		&purchased, &vesting, &commission,
		&tournament, &total, &rate,
		&a.LastAccrualAt, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := parseDecimals(
		purchased, &a.Purchased,
		vesting, &a.VestingAccrued,
		commission, &a.CommissionBalance,
		tournament, &a.TournamentBalance,
		total, &a.TotalMXI,
		rate, &a.MonthlyVestingRate,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new account row
func (r *accountRepository) Create(ctx context.Context, account *entities.Account) error {
	query := `
		INSERT INTO accounts (
			user_id, purchased, vesting_accrued, commission_balance, tournament_balance,
			total_mxi, monthly_vesting_rate, last_accrual_at, created_at, updated_at
		) VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8, $9, $10)
	`
	_, err := r.q.Exec(ctx, query,
		account.UserID,
		account.Purchased.String(),
		account.VestingAccrued.String(),
		account.CommissionBalance.String(),
		account.TournamentBalance.String(),
		account.TotalMXI.String(),
		account.MonthlyVestingRate.String(),
		account.LastAccrualAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account for user %s: %w", account.UserID, err)
	}
	return nil
}

// GetByUserID retrieves an account without locking it
func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*entities.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)
}

// GetByUserIDForUpdate retrieves an account and holds its row lock
func (r *accountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*entities.Account, error) {
	return r.get(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *accountRepository) get(ctx context.Context, query, userID string) (*entities.Account, error) {
	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account for user %s: %w", userID, database.MapError(err))
	}
	return account, nil
}

// LockForUpdate locks the given accounts in ascending user id order
func (r *accountRepository) LockForUpdate(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)

	rows, err := r.q.Query(ctx,
		`SELECT user_id FROM accounts WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("failed to lock accounts: %w", database.MapError(err))
	}
	defer rows.Close()
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock accounts: %w", database.MapError(err))
	}
	return nil
}

// Update persists every bucket of the account
func (r *accountRepository) Update(ctx context.Context, account *entities.Account) error {
	query := `
		UPDATE accounts
		SET purchased = $2::NUMERIC,
		    vesting_accrued = $3::NUMERIC,
		    commission_balance = $4::NUMERIC,
		    tournament_balance = $5::NUMERIC,
		    total_mxi = $6::NUMERIC,
		    monthly_vesting_rate = $7::NUMERIC,
		    last_accrual_at = $8,
		    updated_at = $9
		WHERE user_id = $1
	`
	result, err := r.q.Exec(ctx, query,
		account.UserID,
		account.Purchased.String(),
		account.VestingAccrued.String(),
		account.CommissionBalance.String(),
		account.TournamentBalance.String(),
		account.TotalMXI.String(),
		account.MonthlyVestingRate.String(),
		account.LastAccrualAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account for user %s: %w", account.UserID, database.MapError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: account for user %s", entities.ErrNotFound, account.UserID)
	}
	return nil
}

// ListUserIDsWithPurchased returns accounts that accrue vesting rewards
func (r *accountRepository) ListUserIDsWithPurchased(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT user_id FROM accounts WHERE purchased > 0 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vesting accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ResetAllVesting zeroes every account's vesting rewards in a single statement
func (r *accountRepository) ResetAllVesting(ctx context.Context, now time.Time) (int, decimal.Decimal, error) {
	query := `
		WITH locked AS (
			SELECT user_id, vesting_accrued FROM accounts FOR UPDATE
		), reset AS (
			UPDATE accounts a
			SET vesting_accrued = 0, last_accrual_at = $1, updated_at = $1
			FROM locked l
			WHERE a.user_id = l.user_id
			RETURNING l.vesting_accrued AS previous
		)
		SELECT COUNT(*), COALESCE(SUM(previous), 0)::TEXT FROM reset
	`
	var count int
	var totalText string
	if err := r.q.QueryRow(ctx, query, now).Scan(&count, &totalText); err != nil {
		return 0, decimal.Zero, fmt.Errorf("failed to reset vesting rewards: %w", database.MapError(err))
	}
	total, err := decimal.NewFromString(totalText)
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("invalid reset total %q: %w", totalText, err)
	}
	return count, total, nil
}
