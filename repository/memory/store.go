// Package memory is a process-local implementation of the repository layer.
// Transactions are serialized store-wide and work on a copy of the state, so
// Rollback discards every write made since Begin.
package memory

import (
	"context"
	"fmt"
	"time"

	"mxiledger/application"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
)

type edgeKey struct {
	referrerID string
	referredID string
}

type state struct {
	users        map[string]*entities.User
	accounts     map[string]*entities.Account
	edges        map[edgeKey]*entities.ReferralEdge
	wagers       map[int64]*entities.Wager
	participants map[int64][]*entities.WagerParticipant
	settings     map[string]*entities.GameSettings
	purchases    map[string]*entities.Purchase
	ledger       []*entities.LedgerEntry
	audits       []*entities.AuditRecord

	nextWagerID       int64
	nextParticipantID int64
	nextLedgerID      int64
	nextAuditID       int64
}

func newState() *state {
	return &state{
		users:        make(map[string]*entities.User),
		accounts:     make(map[string]*entities.Account),
		edges:        make(map[edgeKey]*entities.ReferralEdge),
		wagers:       make(map[int64]*entities.Wager),
		participants: make(map[int64][]*entities.WagerParticipant),
		settings:     make(map[string]*entities.GameSettings),
		purchases:    make(map[string]*entities.Purchase),
	}
}

// clone copies every stored record. Records are replaced on write, never
// mutated in place, so copying the structs is enough.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range s.edges {
		e := *v
		c.edges[k] = &e
	}
	for k, v := range s.wagers {
		w := *v
		c.wagers[k] = &w
	}
	for k, list := range s.participants {
		copied := make([]*entities.WagerParticipant, len(list))
		for i, p := range list {
			pp := *p
			copied[i] = &pp
		}
		c.participants[k] = copied
	}
	for k, v := range s.settings {
		gs := *v
		c.settings[k] = &gs
	}
	for k, v := range s.purchases {
		p := *v
		c.purchases[k] = &p
	}
	c.ledger = append(c.ledger, s.ledger...)
	c.audits = append(c.audits, s.audits...)
	c.nextWagerID = s.nextWagerID
	c.nextParticipantID = s.nextParticipantID
	c.nextLedgerID = s.nextLedgerID
	c.nextAuditID = s.nextAuditID
	return c
}

// Store holds the committed state and the store-wide transaction lock
type Store struct {
	sem         chan struct{}
	committed   *state
	lockTimeout time.Duration
	now         func() time.Time
}

// NewStore creates an empty store. Begin waits at most lockTimeout for the
// running transaction; zero waits until ctx is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		sem:         make(chan struct{}, 1),
		committed:   newState(),
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) acquire(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timeout:
		return fmt.Errorf("%w: store busy for %s", entities.ErrLockTimeout, s.lockTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

// CreateWithPublisher creates a UnitOfWork whose EventBus is the given publisher
func (s *Store) CreateWithPublisher(publisher interfaces.EventPublisher) application.UnitOfWork {
	return &unitOfWork{store: s, publisher: publisher}
}
