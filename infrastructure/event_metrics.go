package infrastructure

import (
	"context"

	"mxiledger/domain/entities"
	"mxiledger/domain/events"
	"mxiledger/infrastructure/observability"
)

// RegisterMetricsHandlers derives domain metrics from committed events
func RegisterMetricsHandlers(registry LocalHandlerRegistry, mp *observability.MetricsProvider) {
	registry.RegisterLocalHandler(events.EventTypeBalanceChange, func(_ context.Context, event events.Event) error {
		e, ok := event.(events.BalanceChangeEvent)
		if !ok {
			return nil
		}
		mp.RecordLedgerTransaction(string(e.TransactionType), string(e.Bucket))
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeCommissionPaid, func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.CommissionPaidEvent); ok {
			mp.RecordCommissionPaid(e.Total.InexactFloat64())
		}
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeVestingAccrued, func(context.Context, events.Event) error {
		mp.RecordVestingAccrual()
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeWagerStateChange, func(_ context.Context, event events.Event) error {
		e, ok := event.(events.WagerStateChangeEvent)
		if !ok {
			return nil
		}
		if delta := activeDelta(e.OldStatus, e.NewStatus); delta != 0 {
			mp.UpdateActiveWagers(e.GameType, string(e.Kind), delta)
		}
		return nil
	})
}

// activeDelta is +1 when a wager enters the active set and -1 when it leaves it
func activeDelta(oldStatus, newStatus entities.WagerStatus) int64 {
	wasActive := oldStatus != "" && !oldStatus.IsTerminal()
	isActive := !newStatus.IsTerminal()
	switch {
	case !wasActive && isActive:
		return 1
	case wasActive && !isActive:
		return -1
	}
	return 0
}
