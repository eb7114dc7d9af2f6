package interfaces

import (
	"context"
	"time"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for ledger account data access
type AccountRepository interface {
	// Create inserts a zero-initialized account
	Create(ctx context.Context, account *entities.Account) error

	// GetByUserID retrieves an account without locking it
	GetByUserID(ctx context.Context, userID string) (*entities.Account, error)

	// GetByUserIDForUpdate retrieves an account and locks its row until the
	// surrounding transaction ends
	GetByUserIDForUpdate(ctx context.Context, userID string) (*entities.Account, error)

	// LockForUpdate locks several account rows in ascending user id order
	LockForUpdate(ctx context.Context, userIDs []string) error

	// Update persists every bucket of the account
	Update(ctx context.Context, account *entities.Account) error

	// ListUserIDsWithPurchased returns accounts which accrue vesting rewards
	ListUserIDsWithPurchased(ctx context.Context) ([]string, error)

	// ResetAllVesting zeroes vesting_accrued and restarts last_accrual_at for
	// every account in one statement. Returns the affected count and the sum reset.
	ResetAllVesting(ctx context.Context, now time.Time) (int, decimal.Decimal, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by id
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves a user by normalized email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetByReferralCode retrieves a user by their referral code
	GetByReferralCode(ctx context.Context, code string) (*entities.User, error)

	// ReferralCodeExists checks whether a referral code is taken
	ReferralCodeExists(ctx context.Context, code string) (bool, error)

	// SetReferredBy records the direct referrer of a user
	SetReferredBy(ctx context.Context, userID, referrerID string) error
}

// ReferralRepository defines the interface for referral graph data access
type ReferralRepository interface {
	// LockGraph serializes changes to the referral graph until the
	// surrounding transaction ends
	LockGraph(ctx context.Context) error

	// Create inserts an edge, ignoring an already existing (referrer, referred) pair
	Create(ctx context.Context, edge *entities.ReferralEdge) error

	// GetReferrer returns the level-1 edge pointing at referredID, or nil
	GetReferrer(ctx context.Context, referredID string) (*entities.ReferralEdge, error)

	// ListByReferrer returns every edge where referrerID is the ancestor
	ListByReferrer(ctx context.Context, referrerID string) ([]*entities.ReferralEdge, error)

	// AddCommission increments commission_accumulated on an edge, creating the
	// edge at the given level when it is missing
	AddCommission(ctx context.Context, referrerID, referredID string, level int, amount decimal.Decimal) error
}

// WagerRepository defines the interface for wager and participant data access
type WagerRepository interface {
	// Create inserts a wager and assigns its id
	Create(ctx context.Context, wager *entities.Wager) error

	// GetByID retrieves a wager without locking it
	GetByID(ctx context.Context, id int64) (*entities.Wager, error)

	// GetByIDForUpdate retrieves a wager and locks its row
	GetByIDForUpdate(ctx context.Context, id int64) (*entities.Wager, error)

	// GetByInviteCodeForUpdate retrieves a challenge by invite code and locks its row
	GetByInviteCodeForUpdate(ctx context.Context, code string) (*entities.Wager, error)

	// Update persists the mutable wager fields
	Update(ctx context.Context, wager *entities.Wager) error

	// AddParticipant inserts a participant row and assigns its id
	AddParticipant(ctx context.Context, participant *entities.WagerParticipant) error

	// UpdateParticipant persists score, prize and refund state
	UpdateParticipant(ctx context.Context, participant *entities.WagerParticipant) error

	// GetParticipants returns participants in join order
	GetParticipants(ctx context.Context, wagerID int64) ([]*entities.WagerParticipant, error)

	// CountActiveByGameType counts waiting and in_progress wagers of a game type
	CountActiveByGameType(ctx context.Context, gameType string) (int, error)

	// ListActiveByGameType returns waiting and in_progress wagers, newest first
	ListActiveByGameType(ctx context.Context, gameType string) ([]*entities.Wager, error)

	// InviteCodeExists checks whether an invite code is taken
	InviteCodeExists(ctx context.Context, code string) (bool, error)

	// ListStaleWaiting returns waiting wagers with no activity since the given time
	ListStaleWaiting(ctx context.Context, inactiveSince time.Time) ([]*entities.Wager, error)

	// ListInProgressStartedBefore returns in_progress wagers started before the given time
	ListInProgressStartedBefore(ctx context.Context, before time.Time) ([]*entities.Wager, error)
}

// GameSettingsRepository defines the interface for per game type settings
type GameSettingsRepository interface {
	// GetForUpdate returns the settings row for a game type, creating it with
	// defaultCap when missing, and locks it
	GetForUpdate(ctx context.Context, gameType string, defaultCap int) (*entities.GameSettings, error)

	// Get returns the settings row or nil
	Get(ctx context.Context, gameType string) (*entities.GameSettings, error)

	// Upsert creates or replaces a settings row
	Upsert(ctx context.Context, settings *entities.GameSettings) error

	// List returns all settings rows
	List(ctx context.Context) ([]*entities.GameSettings, error)
}

// LedgerEntryRepository defines the interface for the bucket mutation journal
type LedgerEntryRepository interface {
	// Record creates a new journal entry
	Record(ctx context.Context, entry *entities.LedgerEntry) error

	// GetByUser returns the newest entries for a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error)
}

// AuditRepository defines the interface for the admin audit trail
type AuditRepository interface {
	// Record persists an audit record
	Record(ctx context.Context, record *entities.AuditRecord) error

	// List returns the newest audit records
	List(ctx context.Context, limit int) ([]*entities.AuditRecord, error)
}

// PurchaseRepository defines the interface for purchase idempotency records
type PurchaseRepository interface {
	// Create inserts a purchase; returns false when the order id already exists
	Create(ctx context.Context, purchase *entities.Purchase) (bool, error)

	// GetByOrderID returns the purchase for an order id or nil
	GetByOrderID(ctx context.Context, orderID string) (*entities.Purchase, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(event events.Event) error
}
