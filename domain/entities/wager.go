package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WagerKind identifies the variant of a wager
type WagerKind string

const (
	WagerKindTournament WagerKind = "tournament"
	WagerKindChallenge  WagerKind = "challenge"
	WagerKindMiniBattle WagerKind = "mini_battle"
)

// CreatorFunded reports whether the creator pays an entry fee and joins on create
func (k WagerKind) CreatorFunded() bool {
	return k == WagerKindChallenge || k == WagerKindMiniBattle
}

// WinnerTakesAll reports whether the whole pool goes to the top scorer
func (k WagerKind) WinnerTakesAll() bool {
	return k != WagerKindTournament
}

// WagerStatus represents the state of a wager
type WagerStatus string

const (
	WagerStatusWaiting    WagerStatus = "waiting"
	WagerStatusInProgress WagerStatus = "in_progress"
	WagerStatusCompleted  WagerStatus = "completed"
	WagerStatusCancelled  WagerStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s WagerStatus) IsTerminal() bool {
	return s == WagerStatusCompleted || s == WagerStatusCancelled
}

// TournamentShares are the prize fractions for ranks 1..3; the rest is retained
var TournamentShares = []decimal.Decimal{
	decimal.RequireFromString("0.50"),
	decimal.RequireFromString("0.25"),
	decimal.RequireFromString("0.15"),
}

// Wager is an escrowed competition. Variant specific fields are nil for
// variants that do not use them.
type Wager struct {
	ID              int64           `db:"id"`
	Kind            WagerKind       `db:"kind"`
	GameType        string          `db:"game_type"`
	EntryFee        decimal.Decimal `db:"entry_fee"`
	MaxPlayers      int             `db:"max_players"`
	CurrentPlayers  int             `db:"current_players"`
	PrizePool       decimal.Decimal `db:"prize_pool"`
	RetainedAmount  decimal.Decimal `db:"retained_amount"`
	Status          WagerStatus     `db:"status"`
	CreatorID       *string         `db:"creator_id"`
	InviteCode      *string         `db:"invite_code"`
	AllowRandomJoin bool            `db:"allow_random_join"`
	CancelReason    *string         `db:"cancel_reason"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
	StartedAt       *time.Time      `db:"started_at"`
	CompletedAt     *time.Time      `db:"completed_at"`
	CancelledAt     *time.Time      `db:"cancelled_at"`
}

// WagerParticipant is one enrolled user and the escrow they paid
type WagerParticipant struct {
	ID            int64           `db:"id"`
	WagerID       int64           `db:"wager_id"`
	UserID        string          `db:"user_id"`
	BalanceSource BalanceSource   `db:"balance_source"`
	EntryFeePaid  decimal.Decimal `db:"entry_fee_paid"`
	Score         *int64          `db:"score"`
	Prize         decimal.Decimal `db:"prize"`
	Refunded      bool            `db:"refunded"`
	JoinedAt      time.Time       `db:"joined_at"`
	SubmittedAt   *time.Time      `db:"submitted_at"`
}

// HasResult reports whether the participant submitted a score
func (p *WagerParticipant) HasResult() bool {
	return p.Score != nil
}

// WagerDetail combines a wager with its participants in join order
type WagerDetail struct {
	Wager        *Wager
	Participants []*WagerParticipant
}

// Participant returns the participant row for userID, or nil
func (d *WagerDetail) Participant(userID string) *WagerParticipant {
	for _, p := range d.Participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// AllResultsIn reports whether every enrolled participant has a score
func (d *WagerDetail) AllResultsIn() bool {
	if len(d.Participants) == 0 {
		return false
	}
	for _, p := range d.Participants {
		if !p.HasResult() {
			return false
		}
	}
	return true
}

// EscrowTotal sums the entry fees currently held for the wager
func (d *WagerDetail) EscrowTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Participants {
		total = total.Add(p.EntryFeePaid)
	}
	return total
}

// IsActive checks if the wager counts against its game type's capacity
func (w *Wager) IsActive() bool {
	return !w.Status.IsTerminal()
}

// IsFull checks if every seat is taken
func (w *Wager) IsFull() bool {
	return w.CurrentPlayers >= w.MaxPlayers
}

// IsCreator checks whether userID created the wager
func (w *Wager) IsCreator(userID string) bool {
	return w.CreatorID != nil && *w.CreatorID == userID
}

// CanJoin validates the join preconditions. Fullness is reported first so a
// caller losing the race for the last seat always observes ErrWagerFull.
func (w *Wager) CanJoin() error {
	if w.IsFull() {
		return fmt.Errorf("%w: %d/%d players", ErrWagerFull, w.CurrentPlayers, w.MaxPlayers)
	}
	if w.Status != WagerStatusWaiting {
		return fmt.Errorf("%w: status is %s", ErrWagerNotJoinable, w.Status)
	}
	return nil
}

// AcceptsResults reports whether a result submission is valid in the current state
func (w *Wager) AcceptsResults() bool {
	if w.Kind == WagerKindTournament {
		return w.Status == WagerStatusWaiting || w.Status == WagerStatusInProgress
	}
	return w.Status == WagerStatusInProgress
}

// AddPlayer records a successful join and starts the wager when it fills
func (w *Wager) AddPlayer(now time.Time) {
	w.CurrentPlayers++
	w.UpdatedAt = now
	if w.IsFull() && w.Status == WagerStatusWaiting {
		w.Start(now)
	}
}

// Start transitions waiting -> in_progress
func (w *Wager) Start(now time.Time) {
	w.Status = WagerStatusInProgress
	w.StartedAt = &now
	w.UpdatedAt = now
}

// Complete transitions in_progress -> completed
func (w *Wager) Complete(retained decimal.Decimal, now time.Time) error {
	if w.Status != WagerStatusInProgress {
		return fmt.Errorf("%w: cannot complete wager in status %s", ErrResultNotAccepted, w.Status)
	}
	w.Status = WagerStatusCompleted
	w.RetainedAmount = retained
	w.CompletedAt = &now
	w.UpdatedAt = now
	return nil
}

// Cancel transitions waiting -> cancelled
func (w *Wager) Cancel(reason string, now time.Time) error {
	if w.Status != WagerStatusWaiting {
		return fmt.Errorf("%w: status is %s", ErrWagerNotCancellable, w.Status)
	}
	w.Status = WagerStatusCancelled
	w.CancelReason = &reason
	w.CancelledAt = &now
	w.UpdatedAt = now
	return nil
}
