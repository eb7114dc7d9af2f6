package application

import (
	"context"
	"fmt"

	"mxiledger/domain/entities"

	log "github.com/sirupsen/logrus"
)

// runAudited authorizes an admin, runs fn in a unit of work and persists an
// audit record. A successful operation writes its record in the same
// transaction; a failed one writes it in a fresh transaction after rollback.
func runAudited[T any](
	ctx context.Context,
	c *Core,
	operation string,
	targetUserID *string,
	details map[string]any,
	fn func(ctx context.Context, s *serviceSet, record *entities.AuditRecord) (T, error),
) (T, error) {
	var zero T
	record := &entities.AuditRecord{
		Operation:    operation,
		TargetUserID: targetUserID,
		Details:      details,
	}

	principal, err := authorizeAdmin(ctx)
	record.OperatorID = principal.UserID
	if record.OperatorID == "" {
		record.OperatorID = "anonymous"
	}
	if err != nil {
		c.recordFailure(ctx, record, err)
		return zero, c.finish(operation, c.clock.Now(), err)
	}

	result, err := run(ctx, c, operation, func(ctx context.Context, s *serviceSet) (T, error) {
		res, err := fn(ctx, s, record)
		if err != nil {
			return res, err
		}
		record.Outcome = entities.AuditOutcomeSuccess
		record.CreatedAt = c.clock.Now()
		if err := s.uow.AuditRepository().Record(ctx, record); err != nil {
			return res, fmt.Errorf("failed to record audit: %w", err)
		}
		return res, nil
	})
	if err != nil {
		c.recordFailure(ctx, record, err)
		return zero, err
	}

	log.WithFields(log.Fields{
		"operation":  operation,
		"operatorID": record.OperatorID,
	}).Info("Admin operation completed")
	return result, nil
}

// recordFailure persists a failure audit record in its own transaction
func (c *Core) recordFailure(ctx context.Context, record *entities.AuditRecord, cause error) {
	message := cause.Error()
	record.Outcome = entities.AuditOutcomeFailure
	record.ErrorMessage = &message
	record.NewBalance = nil
	record.CreatedAt = c.clock.Now()

	fields := log.Fields{
		"operation":  record.Operation,
		"operatorID": record.OperatorID,
		"error":      cause,
	}

	// The caller's transaction is gone; the request context may be too
	ctx = context.WithoutCancel(ctx)
	uow := c.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		fields["auditError"] = err
		log.WithFields(fields).Error("Failed to begin audit transaction")
		return
	}
	if err := uow.AuditRepository().Record(ctx, record); err != nil {
		_ = uow.Rollback()
		fields["auditError"] = err
		log.WithFields(fields).Error("Failed to record failed admin operation")
		return
	}
	if err := uow.Commit(); err != nil {
		fields["auditError"] = err
		log.WithFields(fields).Error("Failed to commit audit record")
		return
	}
	log.WithFields(fields).Warn("Admin operation failed")
}

// ListAuditRecords returns the newest audit records
func (c *Core) ListAuditRecords(ctx context.Context, limit int) ([]*entities.AuditRecord, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return run(ctx, c, "list_audit_records", func(ctx context.Context, s *serviceSet) ([]*entities.AuditRecord, error) {
		return s.uow.AuditRepository().List(ctx, limit)
	})
}
