package memory

import (
	"context"
	"fmt"

	"mxiledger/domain/interfaces"
)

type unitOfWork struct {
	store     *Store
	working   *state
	publisher interfaces.EventPublisher
}

// Begin waits for the store lock and snapshots the committed state
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.working != nil {
		return fmt.Errorf("transaction already started")
	}
	if err := u.store.acquire(ctx); err != nil {
		return err
	}
	u.working = u.store.committed.clone()
	return nil
}

// Commit publishes the working state and releases the store lock
func (u *unitOfWork) Commit() error {
	if u.working == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.store.committed = u.working
	u.working = nil
	u.store.release()
	return nil
}

// Rollback discards the working state and releases the store lock
func (u *unitOfWork) Rollback() error {
	if u.working == nil {
		return nil
	}
	u.working = nil
	u.store.release()
	return nil
}

func (u *unitOfWork) mustState() *state {
	if u.working == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.working
}

func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	return &accountRepository{s: u.mustState(), now: u.store.now}
}

func (u *unitOfWork) UserRepository() interfaces.UserRepository {
	return &userRepository{s: u.mustState()}
}

func (u *unitOfWork) ReferralRepository() interfaces.ReferralRepository {
	return &referralRepository{s: u.mustState(), now: u.store.now}
}

func (u *unitOfWork) WagerRepository() interfaces.WagerRepository {
	return &wagerRepository{s: u.mustState()}
}

func (u *unitOfWork) GameSettingsRepository() interfaces.GameSettingsRepository {
	return &gameSettingsRepository{s: u.mustState(), now: u.store.now}
}

func (u *unitOfWork) LedgerEntryRepository() interfaces.LedgerEntryRepository {
	return &ledgerEntryRepository{s: u.mustState(), now: u.store.now}
}

func (u *unitOfWork) AuditRepository() interfaces.AuditRepository {
	return &auditRepository{s: u.mustState(), now: u.store.now}
}

func (u *unitOfWork) PurchaseRepository() interfaces.PurchaseRepository {
	return &purchaseRepository{s: u.mustState()}
}

func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.publisher == nil {
		panic("transactional publisher not configured")
	}
	return u.publisher
}
