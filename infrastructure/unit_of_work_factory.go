package infrastructure

import (
	"context"

	"mxiledger/application"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"
)

// RepositoryFactory creates repository unit of work instances bound to a publisher.
// Implemented by the pgx repository factory and the memory store.
type RepositoryFactory interface {
	CreateWithPublisher(publisher interfaces.EventPublisher) application.UnitOfWork
}

// UnitOfWorkFactory implements application.UnitOfWorkFactory.
// It creates UnitOfWork instances that tie event publishing to the transaction outcome.
type UnitOfWorkFactory struct {
	repoFactory    RepositoryFactory
	eventPublisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory
func NewUnitOfWorkFactory(repoFactory RepositoryFactory, eventPublisher interfaces.EventPublisher) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		repoFactory:    repoFactory,
		eventPublisher: eventPublisher,
	}
}

// RegisterLocalHandler registers a handler that will be invoked locally for events
// flushed by any unit of work of this factory
func (f *UnitOfWorkFactory) RegisterLocalHandler(eventType events.EventType, handler EventHandler) {
	if registry, ok := f.eventPublisher.(LocalHandlerRegistry); ok {
		registry.RegisterLocalHandler(eventType, handler)
	}
}

// Create creates a new UnitOfWork with its own transactional event publisher
func (f *UnitOfWorkFactory) Create() application.UnitOfWork {
	transactionalPublisher := NewTransactionalPublisher(f.eventPublisher)

	return &unitOfWork{
		UnitOfWork:             f.repoFactory.CreateWithPublisher(transactionalPublisher),
		transactionalPublisher: transactionalPublisher,
	}
}

// unitOfWork flushes queued events after a successful commit and drops them otherwise
type unitOfWork struct {
	application.UnitOfWork
	transactionalPublisher TransactionalEventPublisher
	ctx                    context.Context
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	u.ctx = ctx
	return u.UnitOfWork.Begin(ctx)
}

func (u *unitOfWork) Commit() error {
	if err := u.UnitOfWork.Commit(); err != nil {
		u.transactionalPublisher.Discard()
		return err
	}
	// Handlers may run long after the request context ends
	return u.transactionalPublisher.Flush(context.WithoutCancel(u.ctx))
}

func (u *unitOfWork) Rollback() error {
	u.transactionalPublisher.Discard()
	return u.UnitOfWork.Rollback()
}
