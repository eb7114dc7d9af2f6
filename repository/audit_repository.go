package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"mxiledger/database"
	"mxiledger/domain/entities"
)

type auditRepository struct {
	q Queryable
}

func newAuditRepository(q Queryable) *auditRepository {
	return &auditRepository{q: q}
}

// jsonOrNil marshals v, keeping SQL NULL for nil values
func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Record persists an audit record
func (r *auditRepository) Record(ctx context.Context, record *entities.AuditRecord) error {
	oldJSON, err := jsonOrNil(record.OldBalance)
	if err != nil {
		return fmt.Errorf("failed to marshal old balance: %w", err)
	}
	newJSON, err := jsonOrNil(record.NewBalance)
	if err != nil {
		return fmt.Errorf("failed to marshal new balance: %w", err)
	}
	var detailsJSON []byte
	if record.Details != nil {
		if detailsJSON, err = json.Marshal(record.Details); err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO admin_audit_log
		(operation, operator_id, target_user_id, outcome, error_message, old_balance, new_balance, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = r.q.QueryRow(ctx, query,
		record.Operation,
		record.OperatorID,
		record.TargetUserID,
		record.Outcome,
		record.ErrorMessage,
		oldJSON,
		newJSON,
		detailsJSON,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to record audit for %s: %w", record.Operation, database.MapError(err))
	}
	return nil
}

// List returns the newest audit records
func (r *auditRepository) List(ctx context.Context, limit int) ([]*entities.AuditRecord, error) {
	query := `
		SELECT id, operation, operator_id, target_user_id, outcome, error_message,
		       old_balance, new_balance, details, created_at
		FROM admin_audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*entities.AuditRecord
	for rows.Next() {
		var rec entities.AuditRecord
		var oldJSON, newJSON, detailsJSON []byte
		if err := rows.Scan(
			&rec.ID,
			&rec.Operation,
			&rec.OperatorID,
			&rec.TargetUserID,
			&rec.Outcome,
			&rec.ErrorMessage,
			&oldJSON,
			&newJSON,
			&detailsJSON,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if len(oldJSON) > 0 {
			rec.OldBalance = &entities.AccountSnapshot{}
			if err := json.Unmarshal(oldJSON, rec.OldBalance); err != nil {
				return nil, fmt.Errorf("failed to unmarshal old balance: %w", err)
			}
		}
		if len(newJSON) > 0 {
			rec.NewBalance = &entities.AccountSnapshot{}
			if err := json.Unmarshal(newJSON, rec.NewBalance); err != nil {
				return nil, fmt.Errorf("failed to unmarshal new balance: %w", err)
			}
		}
		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &rec.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
