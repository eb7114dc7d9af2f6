package repository

import (
	"context"
	"errors"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"

	"github.com/jackc/pgx/v5"
)

type gameSettingsRepository struct {
	q Queryable
}

func newGameSettingsRepository(q Queryable) *gameSettingsRepository {
	return &gameSettingsRepository{q: q}
}

// GetForUpdate creates the row with defaultCap when missing and locks it.
// Concurrent creators of the same game type queue on this lock.
func (r *gameSettingsRepository) GetForUpdate(ctx context.Context, gameType string, defaultCap int) (*entities.GameSettings, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO game_settings (game_type, max_active_tournaments)
		VALUES ($1, $2)
		ON CONFLICT (game_type) DO NOTHING
	`, gameType, defaultCap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize settings for %s: %w", gameType, database.MapError(err))
	}

	var s entities.GameSettings
	err = r.q.QueryRow(ctx, `
		SELECT game_type, max_active_tournaments, updated_at
		FROM game_settings
		WHERE game_type = $1
		FOR UPDATE
	`, gameType).Scan(&s.GameType, &s.MaxActiveTournaments, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to lock settings for %s: %w", gameType, database.MapError(err))
	}
	return &s, nil
}

// Get returns the settings row or nil
func (r *gameSettingsRepository) Get(ctx context.Context, gameType string) (*entities.GameSettings, error) {
	var s entities.GameSettings
	err := r.q.QueryRow(ctx, `
		SELECT game_type, max_active_tournaments, updated_at
		FROM game_settings
		WHERE game_type = $1
	`, gameType).Scan(&s.GameType, &s.MaxActiveTournaments, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", gameType, err)
	}
	return &s, nil
}

// Upsert creates or replaces a settings row
func (r *gameSettingsRepository) Upsert(ctx context.Context, settings *entities.GameSettings) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO game_settings (game_type, max_active_tournaments, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_type)
		DO UPDATE SET max_active_tournaments = EXCLUDED.max_active_tournaments, updated_at = EXCLUDED.updated_at
	`, settings.GameType, settings.MaxActiveTournaments, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert settings for %s: %w", settings.GameType, database.MapError(err))
	}
	return nil
}

// List returns all settings rows ordered by game type
func (r *gameSettingsRepository) List(ctx context.Context) ([]*entities.GameSettings, error) {
	rows, err := r.q.Query(ctx, `SELECT game_type, max_active_tournaments, updated_at FROM game_settings ORDER BY game_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to list game settings: %w", err)
	}
	defer rows.Close()

	var out []*entities.GameSettings
	for rows.Next() {
		var s entities.GameSettings
		if err := rows.Scan(&s.GameType, &s.MaxActiveTournaments, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game settings: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
