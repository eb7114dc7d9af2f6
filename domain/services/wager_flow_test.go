package services_test

import (
	"context"
	"testing"
	"time"

	"mxiledger/application"
	"mxiledger/domain/entities"
	"mxiledger/domain/interfaces"
	"mxiledger/domain/services"
	"mxiledger/infrastructure"
	"mxiledger/repository/memory"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flow runs each step in its own committed unit of work over a memory store
type flow struct {
	t     *testing.T
	store *memory.Store
	clock *clockwork.FakeClock
}

func newFlow(t *testing.T, balances map[string]int64) *flow {
	f := &flow{
		t:     t,
		store: memory.NewStore(time.Second),
		clock: clockwork.NewFakeClockAt(services.TestNow),
	}
	f.do(func(uow application.UnitOfWork, _ interfaces.WagerService) error {
		ctx := context.Background()
		for id, tournament := range balances {
			if err := uow.UserRepository().Create(ctx, &entities.User{ID: id, Email: id + "@example.com", ReferralCode: "REF" + id}); err != nil {
				return err
			}
			account := entities.NewAccount(id, entities.DefaultMonthlyVestingRate, f.clock.Now())
			if err := account.Credit(entities.BucketTournament, decimal.NewFromInt(tournament)); err != nil {
				return err
			}
			if err := account.Credit(entities.BucketCommission, decimal.NewFromInt(tournament)); err != nil {
				return err
			}
			if err := uow.AccountRepository().Create(ctx, account); err != nil {
				return err
			}
		}
		return nil
	})
	return f
}

func (f *flow) run(fn func(uow application.UnitOfWork, wagers interfaces.WagerService) error) error {
	ctx := context.Background()
	uow := f.store.CreateWithPublisher(infrastructure.NewNoopEventPublisher())
	require.NoError(f.t, uow.Begin(ctx))

	ledger := services.NewLedgerService(uow.AccountRepository(), uow.ReferralRepository(), uow.LedgerEntryRepository(), uow.EventBus(), f.clock)
	wagers := services.NewWagerService(uow.WagerRepository(), uow.GameSettingsRepository(), uow.AccountRepository(), ledger, uow.EventBus(), f.clock)

	if err := fn(uow, wagers); err != nil {
		require.NoError(f.t, uow.Rollback())
		return err
	}
	return uow.Commit()
}

func (f *flow) do(fn func(uow application.UnitOfWork, wagers interfaces.WagerService) error) {
	f.t.Helper()
	require.NoError(f.t, f.run(fn))
}

func (f *flow) account(userID string) *entities.Account {
	f.t.Helper()
	var account *entities.Account
	f.do(func(uow application.UnitOfWork, _ interfaces.WagerService) error {
		var err error
		account, err = uow.AccountRepository().GetByUserID(context.Background(), userID)
		return err
	})
	return account
}

func (f *flow) escrowTotal(userIDs ...string) decimal.Decimal {
	total := decimal.Zero
	for _, id := range userIDs {
		a := f.account(id)
		total = total.Add(a.TournamentBalance).Add(a.CommissionBalance)
	}
	return total
}

func createMiniBattle(f *flow, creator string, fee int64, maxPlayers int) *entities.Wager {
	var wager *entities.Wager
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		detail, err := wagers.Create(context.Background(), interfaces.CreateWagerRequest{
			Kind:          entities.WagerKindMiniBattle,
			CreatorID:     &creator,
			GameType:      services.TestGameType,
			EntryFee:      decimal.NewFromInt(fee),
			MaxPlayers:    maxPlayers,
			BalanceSource: entities.BalanceSourceTournament,
		})
		if err == nil {
			wager = detail.Wager
		}
		return err
	})
	return wager
}

func join(f *flow, wagerID int64, userID string, source entities.BalanceSource) error {
	f.clock.Advance(time.Second)
	return f.run(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		_, err := wagers.Join(context.Background(), interfaces.JoinWagerRequest{WagerID: wagerID, UserID: userID, BalanceSource: source})
		return err
	})
}

func submit(f *flow, wagerID int64, userID string, score int64) *interfaces.SettlementResult {
	var settlement *interfaces.SettlementResult
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		var err error
		_, settlement, err = wagers.SubmitResult(context.Background(), wagerID, userID, score)
		return err
	})
	return settlement
}

func TestWagerFlow_MiniBattleWinnerTakesAll(t *testing.T) {
	users := []string{"alice", "bob"}
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100})
	before := f.escrowTotal(users...)

	wager := createMiniBattle(f, "alice", 10, 2)
	require.NoError(t, join(f, wager.ID, "bob", entities.BalanceSourceCommission))

	assert.True(t, decimal.NewFromInt(90).Equal(f.account("alice").TournamentBalance))
	assert.True(t, decimal.NewFromInt(90).Equal(f.account("bob").CommissionBalance))

	assert.Nil(t, submit(f, wager.ID, "alice", 3))
	settlement := submit(f, wager.ID, "bob", 8)

	require.NotNil(t, settlement)
	require.Len(t, settlement.Payouts, 1)
	assert.Equal(t, "bob", settlement.Payouts[0].UserID)
	assert.Equal(t, entities.BalanceSourceCommission, settlement.Payouts[0].BalanceSource)
	assert.True(t, decimal.NewFromInt(110).Equal(f.account("bob").CommissionBalance))
	assert.True(t, decimal.NewFromInt(100).Equal(f.account("bob").TournamentBalance))
	assert.True(t, before.Equal(f.escrowTotal(users...)), "escrow must be conserved")
}

func TestWagerFlow_TieGoesToEarliestJoin(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100, "carol": 100})

	wager := createMiniBattle(f, "carol", 20, 3)
	require.NoError(t, join(f, wager.ID, "bob", entities.BalanceSourceTournament))
	require.NoError(t, join(f, wager.ID, "alice", entities.BalanceSourceTournament))

	submit(f, wager.ID, "alice", 50)
	submit(f, wager.ID, "carol", 10)
	settlement := submit(f, wager.ID, "bob", 50)

	require.NotNil(t, settlement)
	assert.Equal(t, "bob", settlement.Payouts[0].UserID)
	assert.True(t, decimal.NewFromInt(140).Equal(f.account("bob").TournamentBalance))
}

func TestWagerFlow_JoinAfterFullFails(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100, "carol": 100})

	wager := createMiniBattle(f, "alice", 10, 2)
	require.NoError(t, join(f, wager.ID, "bob", entities.BalanceSourceTournament))

	err := join(f, wager.ID, "carol", entities.BalanceSourceTournament)
	assert.ErrorIs(t, err, entities.ErrWagerFull)
	assert.True(t, decimal.NewFromInt(100).Equal(f.account("carol").TournamentBalance))
}

func TestWagerFlow_CancelRefundsToSource(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100})

	var code string
	var wagerID int64
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		creator := "alice"
		detail, err := wagers.Create(context.Background(), interfaces.CreateWagerRequest{
			Kind:          entities.WagerKindChallenge,
			CreatorID:     &creator,
			GameType:      services.TestGameType,
			EntryFee:      decimal.NewFromInt(30),
			MaxPlayers:    4,
			BalanceSource: entities.BalanceSourceCommission,
		})
		if err != nil {
			return err
		}
		code, wagerID = *detail.Wager.InviteCode, detail.Wager.ID
		return nil
	})
	assert.Len(t, code, services.InviteCodeLength)

	require.ErrorIs(t, join(f, wagerID, "bob", entities.BalanceSourceTournament), entities.ErrWagerNotJoinable)
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		_, err := wagers.Join(context.Background(), interfaces.JoinWagerRequest{InviteCode: code, UserID: "bob", BalanceSource: entities.BalanceSourceTournament})
		return err
	})

	err := f.run(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		_, err := wagers.Cancel(context.Background(), wagerID, "bob")
		return err
	})
	assert.ErrorIs(t, err, entities.ErrNotAuthorized)

	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		detail, err := wagers.Cancel(context.Background(), wagerID, "alice")
		if err == nil {
			assert.Equal(t, entities.WagerStatusCancelled, detail.Wager.Status)
		}
		return err
	})

	assert.True(t, decimal.NewFromInt(100).Equal(f.account("alice").CommissionBalance))
	assert.True(t, decimal.NewFromInt(100).Equal(f.account("bob").TournamentBalance))
}

func TestWagerFlow_Tournament(t *testing.T) {
	players := []string{"p1", "p2", "p3", "p4"}
	balances := map[string]int64{}
	for _, p := range players {
		balances[p] = 10
	}
	f := newFlow(t, balances)

	var wagerID int64
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		detail, err := wagers.Create(context.Background(), interfaces.CreateWagerRequest{
			Kind:       entities.WagerKindTournament,
			GameType:   services.TestGameType,
			EntryFee:   decimal.NewFromInt(3),
			MaxPlayers: 25,
		})
		if err == nil {
			wagerID = detail.Wager.ID
		}
		return err
	})
	for _, p := range players[:3] {
		require.NoError(t, join(f, wagerID, p, entities.BalanceSourceTournament))
	}

	assert.Nil(t, submit(f, wagerID, "p1", 40))
	assert.ErrorIs(t, join(f, wagerID, "p4", entities.BalanceSourceTournament), entities.ErrWagerNotJoinable)
	assert.Nil(t, submit(f, wagerID, "p2", 90))
	settlement := submit(f, wagerID, "p3", 0)

	require.NotNil(t, settlement)
	require.Len(t, settlement.Payouts, 3)
	assert.Equal(t, []string{"p2", "p1", "p3"}, []string{settlement.Payouts[0].UserID, settlement.Payouts[1].UserID, settlement.Payouts[2].UserID})
	assert.True(t, decimal.RequireFromString("13.5").Equal(settlement.Retained))
	assert.True(t, decimal.RequireFromString("74.5").Equal(f.account("p2").TournamentBalance))
}

func TestWagerFlow_DeadlineWithoutScoresRefunds(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100})

	wager := createMiniBattle(f, "alice", 10, 2)
	require.NoError(t, join(f, wager.ID, "bob", entities.BalanceSourceTournament))

	f.clock.Advance(2 * time.Hour)
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		overdue, err := wagers.ListOverdue(context.Background(), time.Hour)
		require.NoError(t, err)
		require.Len(t, overdue, 1)

		settlement, err := wagers.Settle(context.Background(), overdue[0].ID)
		if err == nil {
			assert.True(t, settlement.Refunded)
			assert.Empty(t, settlement.Payouts)
		}
		return err
	})

	assert.True(t, decimal.NewFromInt(100).Equal(f.account("alice").TournamentBalance))
	assert.True(t, decimal.NewFromInt(100).Equal(f.account("bob").TournamentBalance))
}

func TestWagerFlow_StaleWaitingCleanup(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100})

	wager := createMiniBattle(f, "alice", 10, 4)
	f.clock.Advance(61 * time.Minute)

	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		stale, err := wagers.ListStaleWaiting(context.Background(), time.Hour)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, wager.ID, stale[0].ID)

		_, err = wagers.ForceCancel(context.Background(), wager.ID, f.clock.Now().Add(-time.Hour), "stale")
		return err
	})

	assert.True(t, decimal.NewFromInt(100).Equal(f.account("alice").TournamentBalance))
}

func TestWagerFlow_StaleCleanupSkipsWagerJoinedAfterListing(t *testing.T) {
	f := newFlow(t, map[string]int64{"alice": 100, "bob": 100})

	wager := createMiniBattle(f, "alice", 10, 4)
	f.clock.Advance(61 * time.Minute)
	inactiveSince := f.clock.Now().Add(-time.Hour)

	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		stale, err := wagers.ListStaleWaiting(context.Background(), time.Hour)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		return nil
	})

	// bob joins between the listing and the cancel
	require.NoError(t, join(f, wager.ID, "bob", entities.BalanceSourceTournament))

	err := f.run(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		_, err := wagers.ForceCancel(context.Background(), wager.ID, inactiveSince, "stale")
		return err
	})
	require.ErrorIs(t, err, entities.ErrWagerNotCancellable)

	assert.True(t, decimal.NewFromInt(90).Equal(f.account("alice").TournamentBalance))
	assert.True(t, decimal.NewFromInt(90).Equal(f.account("bob").TournamentBalance))
	f.do(func(_ application.UnitOfWork, wagers interfaces.WagerService) error {
		active, err := wagers.ListActive(context.Background(), services.TestGameType)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, 2, active[0].CurrentPlayers)
		return nil
	})
}
