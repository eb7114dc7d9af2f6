package repository

import (
	"context"
	"errors"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

type userRepository struct {
	q Queryable
}

// NewUserRepository creates a user repository on the pool
func NewUserRepository(db *database.DB) interfaces.UserRepository {
	return &userRepository{q: db.Pool}
}

func newUserRepository(q Queryable) *userRepository {
	return &userRepository{q: q}
}

// Create inserts a new user
func (r *userRepository) Create(ctx context.Context, user *entities.User) error {
	query := `
		INSERT INTO users (id, email, referral_code, referred_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.Exec(ctx, query, user.ID, user.Email, user.ReferralCode, user.ReferredBy, user.CreatedAt)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: email %s or referral code %s is taken",
			entities.ErrUserExists, user.Email, user.ReferralCode)
	}
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*entities.User, error) {
	query := `SELECT id, email, referral_code, referred_by, created_at FROM users WHERE ` + where

	var user entities.User
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.ReferralCode,
		&user.ReferredBy,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by id
func (r *userRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByEmail retrieves a user by normalized email
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.getOne(ctx, "email = $1", entities.NormalizeEmail(email))
}

// GetByReferralCode retrieves a user by referral code
func (r *userRepository) GetByReferralCode(ctx context.Context, code string) (*entities.User, error) {
	return r.getOne(ctx, "referral_code = $1", entities.NormalizeCode(code))
}

// ReferralCodeExists checks whether a referral code is taken
func (r *userRepository) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check referral code: %w", err)
	}
	return exists, nil
}

// SetReferredBy records the direct referrer of a user once
func (r *userRepository) SetReferredBy(ctx context.Context, userID, referrerID string) error {
	result, err := r.q.Exec(ctx,
		`UPDATE users SET referred_by = $2 WHERE id = $1 AND referred_by IS NULL`, userID, referrerID)
	if err != nil {
		return fmt.Errorf("failed to set referrer for user %s: %w", userID, database.MapError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s", entities.ErrReferralExists, userID)
	}
	return nil
}
