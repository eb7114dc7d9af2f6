package utils

import (
	"context"
	"errors"
	"testing"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRecordLedgerChange(t *testing.T) {
	ctx := context.Background()

	entryRepo := new(testhelpers.MockLedgerEntryRepository)
	publisher := new(testhelpers.MockEventPublisher)

	entry := &entities.LedgerEntry{
		UserID:          "user-1",
		Bucket:          entities.BucketTournament,
		TransactionType: entities.TransactionTypeWagerPrize,
		ChangeAmount:    decimal.NewFromInt(200),
		BalanceBefore:   decimal.NewFromInt(10),
		BalanceAfter:    decimal.NewFromInt(210),
	}

	entryRepo.On("Record", ctx, entry).Return(nil)
	publisher.On("Publish", mock.MatchedBy(func(event interface{}) bool {
		e, ok := event.(events.BalanceChangeEvent)
		return ok && e.UserID == "user-1" && e.NewBalance.Equal(decimal.NewFromInt(210))
	})).Return(nil)

	err := RecordLedgerChange(ctx, entryRepo, publisher, entry)
	assert.NoError(t, err)

	entryRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestRecordLedgerChange_RecordFails(t *testing.T) {
	ctx := context.Background()

	entryRepo := new(testhelpers.MockLedgerEntryRepository)
	publisher := new(testhelpers.MockEventPublisher)

	entryRepo.On("Record", ctx, mock.Anything).Return(errors.New("db down"))

	err := RecordLedgerChange(ctx, entryRepo, publisher, &entities.LedgerEntry{UserID: "user-1"})
	assert.EqualError(t, err, "failed to record ledger entry: db down")
	publisher.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRecordLedgerChange_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()

	entryRepo := new(testhelpers.MockLedgerEntryRepository)
	publisher := new(testhelpers.MockEventPublisher)

	entryRepo.On("Record", ctx, mock.Anything).Return(nil)
	publisher.On("Publish", mock.Anything).Return(errors.New("nats unavailable"))

	err := RecordLedgerChange(ctx, entryRepo, publisher, &entities.LedgerEntry{UserID: "user-1"})
	assert.NoError(t, err)
}
