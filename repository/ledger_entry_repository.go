package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"
)

type ledgerEntryRepository struct {
	q Queryable
}

func newLedgerEntryRepository(q Queryable) *ledgerEntryRepository {
	return &ledgerEntryRepository{q: q}
}

// Record creates a new journal entry
func (r *ledgerEntryRepository) Record(ctx context.Context, entry *entities.LedgerEntry) error {
	metadataJSON, err := json.Marshal(entry.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_entries
		(user_id, bucket, transaction_type, change_amount, balance_before, balance_after,
		 transaction_metadata, related_id, related_type)
		VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9)
		RETURNING id, created_at
	`
	err = r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.Bucket,
		entry.TransactionType,
		entry.ChangeAmount.String(),
		entry.BalanceBefore.String(),
		entry.BalanceAfter.String(),
		metadataJSON,
		entry.RelatedID,
		entry.RelatedType,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for user %s: %w", entry.UserID, database.MapError(err))
	}
	return nil
}

// GetByUser returns the newest entries for a user
func (r *ledgerEntryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*entities.LedgerEntry, error) {
	query := `
		SELECT id, user_id, bucket, transaction_type,
		       change_amount::TEXT, balance_before::TEXT, balance_after::TEXT,
		       transaction_metadata, related_id, related_type, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []*entities.LedgerEntry
	for rows.Next() {
		var entry entities.LedgerEntry
		var change, before, after string
		var metadataJSON []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Bucket,
			&entry.TransactionType,
			&change, &before, &after,
			&metadataJSON,
			&entry.RelatedID,
			&entry.RelatedType,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if err := parseDecimals(change, &entry.ChangeAmount, before, &entry.BalanceBefore, after, &entry.BalanceAfter); err != nil {
			return nil, err
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
