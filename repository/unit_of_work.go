package repository

import (
	"context"
	"fmt"
	"time"

	"mxiledger/application"
	"mxiledger/database"
	"mxiledger/domain/interfaces"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface over one pgx transaction
type unitOfWork struct {
	db          *database.DB
	lockTimeout time.Duration
	tx          pgx.Tx
	ctx         context.Context
	publisher   interfaces.EventPublisher

	accountRepo      interfaces.AccountRepository
	userRepo         interfaces.UserRepository
	referralRepo     interfaces.ReferralRepository
	wagerRepo        interfaces.WagerRepository
	gameSettingsRepo interfaces.GameSettingsRepository
	ledgerEntryRepo  interfaces.LedgerEntryRepository
	auditRepo        interfaces.AuditRepository
	purchaseRepo     interfaces.PurchaseRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, lockTimeout time.Duration) *unitOfWorkFactory {
	return &unitOfWorkFactory{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

type unitOfWorkFactory struct {
	db          *database.DB
	lockTimeout time.Duration
}

// CreateWithPublisher creates a new UnitOfWork whose EventBus is the given
// transactional publisher
func (f *unitOfWorkFactory) CreateWithPublisher(publisher interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{
		db:          f.db,
		lockTimeout: f.lockTimeout,
		publisher:   publisher,
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.BeginWithLockTimeout(ctx, u.lockTimeout)
	if err != nil {
		return database.MapError(err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepository(tx)
	u.userRepo = newUserRepository(tx)
	u.referralRepo = newReferralRepository(tx)
	u.wagerRepo = newWagerRepository(tx)
	u.gameSettingsRepo = newGameSettingsRepository(tx)
	u.ledgerEntryRepo = newLedgerEntryRepository(tx)
	u.auditRepo = newAuditRepository(tx)
	u.purchaseRepo = newPurchaseRepository(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", database.MapError(err))
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// UserRepository returns the user repository for this unit of work
func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

// ReferralRepository returns the referral repository for this unit of work
func (u *unitOfWork) ReferralRepository() interfaces.ReferralRepository {
	if u.referralRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.referralRepo
}

// WagerRepository returns the wager repository for this unit of work
func (u *unitOfWork) WagerRepository() interfaces.WagerRepository {
	if u.wagerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.wagerRepo
}

// GameSettingsRepository returns the game settings repository for this unit of work
func (u *unitOfWork) GameSettingsRepository() interfaces.GameSettingsRepository {
	if u.gameSettingsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameSettingsRepo
}

// LedgerEntryRepository returns the ledger entry repository for this unit of work
func (u *unitOfWork) LedgerEntryRepository() interfaces.LedgerEntryRepository {
	if u.ledgerEntryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerEntryRepo
}

// AuditRepository returns the audit repository for this unit of work
func (u *unitOfWork) AuditRepository() interfaces.AuditRepository {
	if u.auditRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.auditRepo
}

// PurchaseRepository returns the purchase repository for this unit of work
func (u *unitOfWork) PurchaseRepository() interfaces.PurchaseRepository {
	if u.purchaseRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.purchaseRepo
}

// EventBus returns the transactional event publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.publisher == nil {
		panic("transactional publisher not configured")
	}
	return u.publisher
}
