package application

import (
	"context"
	"errors"
	"time"

	"mxiledger/domain/entities"

	log "github.com/sirupsen/logrus"
)

// MaintenanceReport summarizes one maintenance sweep
type MaintenanceReport struct {
	Found     int
	Processed int
	Skipped   int
	Failed    int
}

// CleanupStaleWagers cancels waiting wagers idle for at least inactiveFor and
// refunds their participants. Each wager is cancelled in its own transaction
// and skipped if it saw activity after it was listed.
func (c *Core) CleanupStaleWagers(ctx context.Context, inactiveFor time.Duration) (*MaintenanceReport, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return nil, err
	}

	stale, err := run(ctx, c, "list_stale_wagers", func(ctx context.Context, s *serviceSet) ([]*entities.Wager, error) {
		return s.wagers.ListStaleWaiting(ctx, inactiveFor)
	})
	if err != nil {
		return nil, err
	}

	inactiveSince := c.clock.Now().Add(-inactiveFor)
	report := &MaintenanceReport{Found: len(stale)}
	for _, wager := range stale {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		_, err := run(ctx, c, "cancel_stale_wager", func(ctx context.Context, s *serviceSet) (*entities.WagerDetail, error) {
			return s.wagers.ForceCancel(ctx, wager.ID, inactiveSince, "inactive for "+inactiveFor.String())
		})
		if errors.Is(err, entities.ErrWagerNotCancellable) {
			report.Skipped++
			log.WithFields(log.Fields{
				"wagerID": wager.ID,
				"reason":  err.Error(),
			}).Debug("Stale wager no longer cancellable")
			continue
		}
		if err != nil {
			report.Failed++
			log.WithFields(log.Fields{
				"wagerID":   wager.ID,
				"errorCode": entities.ErrorCode(err),
				"error":     err,
			}).Warn("Failed to cancel stale wager")
			continue
		}
		report.Processed++
	}

	if report.Found > 0 {
		log.WithFields(log.Fields{
			"found":     report.Found,
			"cancelled": report.Processed,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		}).Info("Stale wager cleanup finished")
	}
	return report, nil
}

// SettleOverdueWagers settles in progress wagers that started more than
// settleAfter ago with the results submitted so far
func (c *Core) SettleOverdueWagers(ctx context.Context, settleAfter time.Duration) (*MaintenanceReport, error) {
	if _, err := authorizeAdmin(ctx); err != nil {
		return nil, err
	}

	overdue, err := run(ctx, c, "list_overdue_wagers", func(ctx context.Context, s *serviceSet) ([]*entities.Wager, error) {
		return s.wagers.ListOverdue(ctx, settleAfter)
	})
	if err != nil {
		return nil, err
	}

	report := &MaintenanceReport{Found: len(overdue)}
	for _, wager := range overdue {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		_, err := run(ctx, c, "settle_overdue_wager", func(ctx context.Context, s *serviceSet) (struct{}, error) {
			_, err := s.wagers.Settle(ctx, wager.ID)
			return struct{}{}, err
		})
		if err != nil {
			report.Failed++
			log.WithFields(log.Fields{
				"wagerID":   wager.ID,
				"errorCode": entities.ErrorCode(err),
				"error":     err,
			}).Warn("Failed to settle overdue wager")
			continue
		}
		report.Processed++
	}

	if report.Found > 0 {
		log.WithFields(log.Fields{
			"found":   report.Found,
			"settled": report.Processed,
			"failed":  report.Failed,
		}).Info("Overdue wager settlement finished")
	}
	return report, nil
}
