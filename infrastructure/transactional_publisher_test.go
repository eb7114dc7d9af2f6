package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingPublisher is an EventPublisher that keeps what it receives
type recordingPublisher struct {
	PublishedEvents []events.Event
	PublishError    error
}

func (m *recordingPublisher) Publish(event events.Event) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, event)
	return nil
}

// recordingBus is a MessagePublisher that keeps what it receives
type recordingBus struct {
	subjects []string
	messages [][]byte
	err      error
}

func (b *recordingBus) Publish(_ context.Context, subject string, data []byte) error {
	if b.err != nil {
		return b.err
	}
	b.subjects = append(b.subjects, subject)
	b.messages = append(b.messages, data)
	return nil
}

func balanceEvent(userID string) events.BalanceChangeEvent {
	return events.BalanceChangeEvent{
		UserID:          userID,
		Bucket:          entities.BucketPurchased,
		OldBalance:      decimal.Zero,
		NewBalance:      decimal.NewFromInt(10),
		ChangeAmount:    decimal.NewFromInt(10),
		TransactionType: entities.TransactionTypePurchase,
	}
}

func TestTransactionalPublisher_FlushPublishesInOrder(t *testing.T) {
	real := &recordingPublisher{}
	publisher := NewTransactionalPublisher(real)

	require.NoError(t, publisher.Publish(balanceEvent("u1")))
	require.NoError(t, publisher.Publish(balanceEvent("u2")))

	assert.Empty(t, real.PublishedEvents)
	assert.Equal(t, 2, publisher.Pending())

	require.NoError(t, publisher.Flush(context.Background()))

	require.Len(t, real.PublishedEvents, 2)
	assert.Equal(t, "u1", real.PublishedEvents[0].(events.BalanceChangeEvent).UserID)
	assert.Equal(t, "u2", real.PublishedEvents[1].(events.BalanceChangeEvent).UserID)
	assert.Zero(t, publisher.Pending())
}

func TestTransactionalPublisher_FlushIgnoresPublishErrors(t *testing.T) {
	real := &recordingPublisher{PublishError: errors.New("nats down")}
	publisher := NewTransactionalPublisher(real)
	require.NoError(t, publisher.Publish(balanceEvent("u1")))

	assert.NoError(t, publisher.Flush(context.Background()))
	assert.Zero(t, publisher.Pending())
}

func TestTransactionalPublisher_Discard(t *testing.T) {
	real := &recordingPublisher{}
	publisher := NewTransactionalPublisher(real)
	require.NoError(t, publisher.Publish(balanceEvent("u1")))

	publisher.Discard()
	require.NoError(t, publisher.Flush(context.Background()))

	assert.Empty(t, real.PublishedEvents)
}

func TestLocalEventDispatcher_RunsEveryHandler(t *testing.T) {
	dispatcher := NewLocalEventDispatcher()
	var calls []string

	dispatcher.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		calls = append(calls, "first")
		return errors.New("handler failed")
	})
	dispatcher.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		calls = append(calls, "second")
		return nil
	})
	dispatcher.RegisterLocalHandler(events.EventTypeVestingReset, func(ctx context.Context, event events.Event) error {
		calls = append(calls, "other")
		return nil
	})

	require.NoError(t, dispatcher.Publish(balanceEvent("u1")))

	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	t.Run("wraps the event in an envelope on its subject", func(t *testing.T) {
		bus := &recordingBus{}
		publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper())
		handled := false
		publisher.RegisterLocalHandler(events.EventTypeBalanceChange, func(context.Context, events.Event) error {
			handled = true
			return nil
		})

		require.NoError(t, publisher.Publish(balanceEvent("u1")))

		assert.True(t, handled)
		require.Len(t, bus.messages, 1)
		assert.Equal(t, "mxi.balance_change", bus.subjects[0])

		var envelope EventEnvelope
		require.NoError(t, json.Unmarshal(bus.messages[0], &envelope))
		assert.Equal(t, "balance_change", envelope.EventType)
		assert.Equal(t, SourceService, envelope.SourceService)
		assert.NotEmpty(t, envelope.EventID)

		var payload events.BalanceChangeEvent
		require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
		assert.Equal(t, "u1", payload.UserID)
		assert.True(t, payload.NewBalance.Equal(decimal.NewFromInt(10)))
	})

	t.Run("missing stream is not an error", func(t *testing.T) {
		bus := &recordingBus{err: errors.New("nats: no response from stream")}
		publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper())
		assert.NoError(t, publisher.Publish(balanceEvent("u1")))
	})

	t.Run("other bus errors are returned", func(t *testing.T) {
		bus := &recordingBus{err: errors.New("connection closed")}
		publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper())
		assert.ErrorContains(t, publisher.Publish(balanceEvent("u1")), "connection closed")
	})
}

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	subjects := mapper.GetAllSubjects()
	assert.Contains(t, subjects, "mxi.wager_state_change")
	assert.Contains(t, subjects, "mxi.vesting_reset")
	assert.Len(t, subjects, len(events.AllEventTypes()))

	assert.Equal(t, events.EventTypeCommissionPaid, mapper.MapSubjectToEventType("mxi.commission_paid"))
}

func TestUnitOfWorkFactory_EventsFollowTransactionOutcome(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewLocalEventDispatcher()
	factory := NewUnitOfWorkFactory(memory.NewStore(time.Second), dispatcher)

	var received []string
	factory.RegisterLocalHandler(events.EventTypeBalanceChange, func(_ context.Context, event events.Event) error {
		received = append(received, event.(events.BalanceChangeEvent).UserID)
		return nil
	})

	committed := factory.Create()
	require.NoError(t, committed.Begin(ctx))
	require.NoError(t, committed.EventBus().Publish(balanceEvent("kept")))
	assert.Empty(t, received)
	require.NoError(t, committed.Commit())

	rolledBack := factory.Create()
	require.NoError(t, rolledBack.Begin(ctx))
	require.NoError(t, rolledBack.EventBus().Publish(balanceEvent("dropped")))
	require.NoError(t, rolledBack.Rollback())

	assert.Equal(t, []string{"kept"}, received)
}
