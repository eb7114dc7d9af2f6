package utils

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// RecordLedgerChange journals a bucket mutation and emits the balance change event.
// This is the single entry point for all bucket mutations in the system.
func RecordLedgerChange(ctx context.Context, entryRepo interfaces.LedgerEntryRepository, eventPublisher interfaces.EventPublisher, entry *entities.LedgerEntry) error {
	if err := entryRepo.Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	event := events.BalanceChangeEvent{
		UserID:          entry.UserID,
		Bucket:          entry.Bucket,
		OldBalance:      entry.BalanceBefore,
		NewBalance:      entry.BalanceAfter,
		ChangeAmount:    entry.ChangeAmount,
		TransactionType: entry.TransactionType,
	}
	log.WithFields(log.Fields{
		"userID":          event.UserID,
		"bucket":          event.Bucket,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
		"transactionType": event.TransactionType,
		"changeAmount":    event.ChangeAmount,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}
