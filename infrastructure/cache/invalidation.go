package cache

import (
	"context"

	"mxiledger/domain/events"
	"mxiledger/infrastructure"
)

// RegisterInvalidation drops cached read models whenever a committed event
// shows that they changed
func RegisterInvalidation(registry infrastructure.LocalHandlerRegistry, c ReadCache) {
	registry.RegisterLocalHandler(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.BalanceChangeEvent); ok {
			c.InvalidateAccount(ctx, e.UserID)
		}
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeVestingAccrued, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.VestingAccruedEvent); ok {
			c.InvalidateAccount(ctx, e.UserID)
		}
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeVestingReset, func(ctx context.Context, event events.Event) error {
		c.InvalidateAllAccounts(ctx)
		return nil
	})

	registry.RegisterLocalHandler(events.EventTypeWagerStateChange, func(ctx context.Context, event events.Event) error {
		if e, ok := event.(events.WagerStateChangeEvent); ok {
			c.InvalidateActiveWagers(ctx, e.GameType)
		}
		return nil
	})
}
