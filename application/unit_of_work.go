package application

import (
	"context"

	"mxiledger/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	AccountRepository() interfaces.AccountRepository
	UserRepository() interfaces.UserRepository
	ReferralRepository() interfaces.ReferralRepository
	WagerRepository() interfaces.WagerRepository
	GameSettingsRepository() interfaces.GameSettingsRepository
	LedgerEntryRepository() interfaces.LedgerEntryRepository
	AuditRepository() interfaces.AuditRepository
	PurchaseRepository() interfaces.PurchaseRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
