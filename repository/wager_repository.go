package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mxiledger/database"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

const wagerColumns = `
	id, kind, game_type, entry_fee::TEXT, max_players, current_players,
	prize_pool::TEXT, retained_amount::TEXT, status, creator_id, invite_code,
	allow_random_join, cancel_reason, created_at, updated_at,
	started_at, completed_at, cancelled_at`

const participantColumns = `
	id, wager_id, user_id, balance_source, entry_fee_paid::TEXT, score,
	prize::TEXT, refunded, joined_at, submitted_at`

type wagerRepository struct {
	q Queryable
}

// NewWagerRepository creates a wager repository on the pool
func NewWagerRepository(db *database.DB) interfaces.WagerRepository {
	return &wagerRepository{q: db.Pool}
}

func newWagerRepository(q Queryable) *wagerRepository {
	return &wagerRepository{q: q}
}

func scanWager(row pgx.Row) (*entities.Wager, error) {
	var w entities.Wager
	var entryFee, prizePool, retained string
	if err := row.Scan(
		&w.ID, &w.Kind, &w.GameType, &entryFee, &w.MaxPlayers, &w.CurrentPlayers,
		&prizePool, &retained, &w.Status, &w.CreatorID, &w.InviteCode,
		&w.AllowRandomJoin, &w.CancelReason, &w.CreatedAt, &w.UpdatedAt,
		&w.StartedAt, &w.CompletedAt, &w.CancelledAt,
	); err != nil {
		return nil, err
	}
	if err := parseDecimals(entryFee, &w.EntryFee, prizePool, &w.PrizePool, retained, &w.RetainedAmount); err != nil {
		return nil, err
	}
	return &w, nil
}

func scanParticipant(row pgx.Row) (*entities.WagerParticipant, error) {
	var p entities.WagerParticipant
	var fee, prize string
	if err := row.Scan(
		&p.ID, &p.WagerID, &p.UserID, &p.BalanceSource, &fee, &p.Score,
		&prize, &p.Refunded, &p.JoinedAt, &p.SubmittedAt,
	); err != nil {
		return nil, err
	}
	if err := parseDecimals(fee, &p.EntryFeePaid, prize, &p.Prize); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *wagerRepository) queryWagers(ctx context.Context, query string, args ...any) ([]*entities.Wager, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*entities.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wagers: %w", err)
	}
	return wagers, nil
}

func (r *wagerRepository) getOne(ctx context.Context, query string, arg any) (*entities.Wager, error) {
	w, err := scanWager(r.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wager: %w", database.MapError(err))
	}
	return w, nil
}

// Create inserts a wager and assigns its id
func (r *wagerRepository) Create(ctx context.Context, wager *entities.Wager) error {
	query := `
		INSERT INTO wagers (
			kind, game_type, entry_fee, max_players, current_players, prize_pool,
			retained_amount, status, creator_id, invite_code, allow_random_join,
			created_at, updated_at
		) VALUES ($1, $2, $3::NUMERIC, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		wager.Kind,
		wager.GameType,
		wager.EntryFee.String(),
		wager.MaxPlayers,
		wager.CurrentPlayers,
		wager.PrizePool.String(),
		wager.RetainedAmount.String(),
		wager.Status,
		wager.CreatorID,
		wager.InviteCode,
		wager.AllowRandomJoin,
		wager.CreatedAt,
		wager.UpdatedAt,
	).Scan(&wager.ID)
	if err != nil {
		return fmt.Errorf("failed to create %s wager: %w", wager.Kind, database.MapError(err))
	}
	return nil
}

// GetByID retrieves a wager without locking it
func (r *wagerRepository) GetByID(ctx context.Context, id int64) (*entities.Wager, error) {
	return r.getOne(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a wager and locks its row
func (r *wagerRepository) GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error) {
	return r.getOne(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1 FOR UPDATE`, id)
}

// GetByInviteCodeForUpdate retrieves a challenge by invite code and locks its row
func (r *wagerRepository) GetByInviteCodeForUpdate(ctx context.Context, code string) (*entities.Wager, error) {
	return r.getOne(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE invite_code = $1 FOR UPDATE`, entities.NormalizeCode(code))
}

// Update persists the mutable wager fields
func (r *wagerRepository) Update(ctx context.Context, wager *entities.Wager) error {
	query := `
		UPDATE wagers
		SET current_players = $2,
		    retained_amount = $3::NUMERIC,
		    status = $4,
		    cancel_reason = $5,
		    updated_at = $6,
		    started_at = $7,
		    completed_at = $8,
		    cancelled_at = $9
		WHERE id = $1
	`
	result, err := r.q.Exec(ctx, query,
		wager.ID,
		wager.CurrentPlayers,
		wager.RetainedAmount.String(),
		wager.Status,
		wager.CancelReason,
		wager.UpdatedAt,
		wager.StartedAt,
		wager.CompletedAt,
		wager.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update wager %d: %w", wager.ID, database.MapError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: wager %d", entities.ErrNotFound, wager.ID)
	}
	return nil
}

// AddParticipant inserts a participant row and assigns its id
func (r *wagerRepository) AddParticipant(ctx context.Context, p *entities.WagerParticipant) error {
	query := `
		INSERT INTO wager_participants (wager_id, user_id, balance_source, entry_fee_paid, joined_at)
		VALUES ($1, $2, $3, $4::NUMERIC, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query, p.WagerID, p.UserID, p.BalanceSource, p.EntryFeePaid.String(), p.JoinedAt).Scan(&p.ID)
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: user %s in wager %d", entities.ErrAlreadyJoined, p.UserID, p.WagerID)
	}
	if err != nil {
		return fmt.Errorf("failed to add participant to wager %d: %w", p.WagerID, database.MapError(err))
	}
	return nil
}

// UpdateParticipant persists score, prize and refund state
func (r *wagerRepository) UpdateParticipant(ctx context.Context, p *entities.WagerParticipant) error {
	query := `
		UPDATE wager_participants
		SET score = $2, prize = $3::NUMERIC, refunded = $4, submitted_at = $5
		WHERE id = $1
	`
	result, err := r.q.Exec(ctx, query, p.ID, p.Score, p.Prize.String(), p.Refunded, p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to update participant %d: %w", p.ID, database.MapError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: participant %d", entities.ErrNotFound, p.ID)
	}
	return nil
}

// GetParticipants returns participants in join order
func (r *wagerRepository) GetParticipants(ctx context.Context, wagerID int64) ([]*entities.WagerParticipant, error) {
	query := `SELECT ` + participantColumns + ` FROM wager_participants WHERE wager_id = $1 ORDER BY joined_at, id`
	rows, err := r.q.Query(ctx, query, wagerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants of wager %d: %w", wagerID, err)
	}
	defer rows.Close()

	var participants []*entities.WagerParticipant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// CountActiveByGameType counts waiting and in_progress wagers of a game type
func (r *wagerRepository) CountActiveByGameType(ctx context.Context, gameType string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM wagers WHERE game_type = $1 AND status IN ('waiting', 'in_progress')`, gameType,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active wagers for %s: %w", gameType, err)
	}
	return count, nil
}

// ListActiveByGameType returns waiting and in_progress wagers, newest first
func (r *wagerRepository) ListActiveByGameType(ctx context.Context, gameType string) ([]*entities.Wager, error) {
	return r.queryWagers(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE game_type = $1 AND status IN ('waiting', 'in_progress')
		ORDER BY created_at DESC, id DESC
	`, gameType)
}

// InviteCodeExists checks whether an invite code is taken
func (r *wagerRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM wagers WHERE invite_code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invite code: %w", err)
	}
	return exists, nil
}

// ListStaleWaiting returns waiting wagers with no activity since the given time
func (r *wagerRepository) ListStaleWaiting(ctx context.Context, inactiveSince time.Time) ([]*entities.Wager, error) {
	return r.queryWagers(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE status = 'waiting' AND updated_at < $1
		ORDER BY updated_at, id
	`, inactiveSince)
}

// ListInProgressStartedBefore returns in_progress wagers started before the given time
func (r *wagerRepository) ListInProgressStartedBefore(ctx context.Context, before time.Time) ([]*entities.Wager, error) {
	return r.queryWagers(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers
		WHERE status = 'in_progress' AND started_at < $1
		ORDER BY started_at, id
	`, before)
}
