package entities

import "time"

// GameSettings holds the admin-configurable limits for one game type
type GameSettings struct {
	GameType             string    `db:"game_type"`
	MaxActiveTournaments int       `db:"max_active_tournaments"`
	UpdatedAt            time.Time `db:"updated_at"`
}

// CapacityStatus reports how much of a game type's cap is in use
type CapacityStatus struct {
	GameType             string `json:"game_type"`
	MaxActiveTournaments int    `json:"max_active_tournaments"`
	Active               int    `json:"active"`
}

// Available returns the number of wagers that may still be created
func (c *CapacityStatus) Available() int {
	if c.Active >= c.MaxActiveTournaments {
		return 0
	}
	return c.MaxActiveTournaments - c.Active
}
