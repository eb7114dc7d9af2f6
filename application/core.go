package application

import (
	"context"
	"fmt"
	"time"

	"mxiledger/database"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
	"mxiledger/domain/services"
	"mxiledger/infrastructure/observability"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// ReadCache caches read models between transactions. Implemented by
// infrastructure/cache. A miss hands out a version that must be passed to the
// matching Set after the source was read; the fill is dropped if the entry
// was invalidated in between.
type ReadCache interface {
	GetAccount(ctx context.Context, userID string) (*entities.AccountSnapshot, string, bool)
	SetAccount(ctx context.Context, snapshot *entities.AccountSnapshot, version string)
	GetActiveWagers(ctx context.Context, gameType string) ([]*entities.Wager, string, bool)
	SetActiveWagers(ctx context.Context, gameType string, wagers []*entities.Wager, version string)
}

type noopReadCache struct{}

func (noopReadCache) GetAccount(context.Context, string) (*entities.AccountSnapshot, string, bool) {
	return nil, "", false
}
func (noopReadCache) SetAccount(context.Context, *entities.AccountSnapshot, string) {}
func (noopReadCache) GetActiveWagers(context.Context, string) ([]*entities.Wager, string, bool) {
	return nil, "", false
}
func (noopReadCache) SetActiveWagers(context.Context, string, []*entities.Wager, string) {}

// Core exposes the ledger operations. Every operation runs in its own unit of
// work and either commits all of its effects or none.
type Core struct {
	uowFactory UnitOfWorkFactory
	clock      clockwork.Clock
	cache      ReadCache
	metrics    *observability.MetricsProvider
}

// Option configures optional Core collaborators
type Option func(*Core)

// WithReadCache serves balance and wager list reads from c
func WithReadCache(c ReadCache) Option {
	return func(core *Core) { core.cache = c }
}

// WithMetrics records operation outcomes on mp
func WithMetrics(mp *observability.MetricsProvider) Option {
	return func(core *Core) { core.metrics = mp }
}

// NewCore creates the operation layer over a unit of work factory
func NewCore(uowFactory UnitOfWorkFactory, clock clockwork.Clock, opts ...Option) *Core {
	c := &Core{
		uowFactory: uowFactory,
		clock:      clock,
		cache:      noopReadCache{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// serviceSet holds the domain services bound to one unit of work
type serviceSet struct {
	uow        UnitOfWork
	ledger     interfaces.LedgerService
	vesting    interfaces.VestingService
	commission interfaces.CommissionService
	referrals  interfaces.ReferralService
	wagers     interfaces.WagerService
	accounts   interfaces.AccountService
}

func newServiceSet(uow UnitOfWork, clock clockwork.Clock) *serviceSet {
	bus := uow.EventBus()
	ledger := services.NewLedgerService(uow.AccountRepository(), uow.ReferralRepository(), uow.LedgerEntryRepository(), bus, clock)
	referrals := services.NewReferralService(uow.UserRepository(), uow.ReferralRepository(), clock)

	return &serviceSet{
		uow:        uow,
		ledger:     ledger,
		vesting:    services.NewVestingService(uow.AccountRepository(), bus, clock),
		commission: services.NewCommissionService(uow.ReferralRepository(), ledger, bus),
		referrals:  referrals,
		wagers:     services.NewWagerService(uow.WagerRepository(), uow.GameSettingsRepository(), uow.AccountRepository(), ledger, bus, clock),
		accounts:   services.NewAccountService(uow.UserRepository(), uow.AccountRepository(), referrals, bus, clock),
	}
}

// run executes fn inside a fresh unit of work, committing on success
func run[T any](ctx context.Context, c *Core, operation string, fn func(ctx context.Context, s *serviceSet) (T, error)) (T, error) {
	var zero T
	start := c.clock.Now()

	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return zero, c.finish(operation, start, fmt.Errorf("failed to begin transaction: %w", database.MapError(err)))
	}

	result, err := fn(ctx, newServiceSet(uow, c.clock))
	if err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			log.WithFields(log.Fields{
				"operation": operation,
				"error":     rbErr,
			}).Error("Failed to rollback transaction")
		}
		return zero, c.finish(operation, start, database.MapError(err))
	}

	if err := uow.Commit(); err != nil {
		return zero, c.finish(operation, start, err)
	}
	return result, c.finish(operation, start, nil)
}

// finish records the outcome of an operation and passes err through
func (c *Core) finish(operation string, start time.Time, err error) error {
	code := entities.ErrorCode(err)
	c.metrics.RecordOperation(operation, code, c.clock.Since(start))

	if code == "internal" {
		log.WithFields(log.Fields{
			"operation": operation,
			"error":     err,
		}).Error("Operation failed")
	} else if err != nil {
		log.WithFields(log.Fields{
			"operation": operation,
			"errorCode": code,
			"error":     err,
		}).Debug("Operation rejected")
	}
	return err
}
