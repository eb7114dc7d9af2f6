package application_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mxiledger/application"
	"mxiledger/application/dto"
	"mxiledger/domain/entities"
	"mxiledger/infrastructure"
	"mxiledger/infrastructure/cache"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAccount(t *testing.T) {
	env := newTestEnv(t)

	referrer := env.register(t, "Referrer@Example.com", "")
	assert.Len(t, referrer.ReferralCode, 8)
	assert.Nil(t, referrer.ReferrerID)

	referred := env.register(t, "referred@example.com", referrer.ReferralCode)
	require.NotNil(t, referred.ReferrerID)
	assert.Equal(t, referrer.UserID, *referred.ReferrerID)

	view := env.balance(t, referred.UserID)
	assert.True(t, view.TotalMXI.IsZero())
	assert.True(t, dec("0.03").Equal(view.MonthlyVestingRate))

	_, err := env.core.RegisterAccount(adminCtx(), dto.RegisterAccountRequest{Email: "REFERRER@example.com"})
	require.ErrorIs(t, err, entities.ErrUserExists)

	_, err = env.core.RegisterAccount(userCtx("someone"), dto.RegisterAccountRequest{Email: "new@example.com"})
	require.ErrorIs(t, err, entities.ErrNotAuthorized)
}

func TestRecordPurchase(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.register(t, "referrer@example.com", "")
	buyer := env.register(t, "buyer@example.com", referrer.ReferralCode)

	req := dto.RecordPurchaseRequest{OrderID: "order-1", UserID: buyer.UserID, MXIAmount: dec("40")}
	resp, err := env.core.RecordPurchase(adminCtx(), req)
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(resp.NewPurchasedMXI))
	assert.True(t, dec("2").Equal(resp.TotalCommissions))

	t.Run("same order is credited once", func(t *testing.T) {
		_, err := env.core.RecordPurchase(adminCtx(), req)
		require.ErrorIs(t, err, entities.ErrDuplicatePurchase)
		assert.True(t, dec("40").Equal(env.balance(t, buyer.UserID).Purchased))
		assert.True(t, dec("2").Equal(env.balance(t, referrer.UserID).CommissionBalance))
	})

	t.Run("failed credit does not consume the order id", func(t *testing.T) {
		_, err := env.core.RecordPurchase(adminCtx(), dto.RecordPurchaseRequest{OrderID: "order-2", UserID: "missing", MXIAmount: dec("1")})
		require.ErrorIs(t, err, entities.ErrNotFound)

		_, err = env.core.RecordPurchase(adminCtx(), dto.RecordPurchaseRequest{OrderID: "order-2", UserID: buyer.UserID, MXIAmount: dec("1")})
		require.NoError(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := env.core.RecordPurchase(adminCtx(), dto.RecordPurchaseRequest{OrderID: " ", UserID: buyer.UserID, MXIAmount: dec("1")})
		require.ErrorIs(t, err, entities.ErrInvalidRequest)
		_, err = env.core.RecordPurchase(adminCtx(), dto.RecordPurchaseRequest{OrderID: "order-3", UserID: buyer.UserID, MXIAmount: dec("-1")})
		require.ErrorIs(t, err, entities.ErrInvalidAmount)
	})
}

func TestAdminRemoveBalance_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "user@example.com", "")
	env.fund(t, user.UserID, entities.BucketPurchased, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.core.AdminRemoveBalance(adminCtx(), dto.AmountRequest{UserID: user.UserID, Amount: dec("10")})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, entities.ErrInsufficientBalance)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, successes)
	view := env.balance(t, user.UserID)
	assert.True(t, view.Purchased.IsZero())
	assert.True(t, view.TotalMXI.IsZero())
}

type fakeReadCache struct {
	mu       sync.Mutex
	accounts map[string]*entities.AccountSnapshot
	gets     int
}

func (f *fakeReadCache) GetAccount(_ context.Context, userID string) (*entities.AccountSnapshot, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	s, ok := f.accounts[userID]
	return s, "v", ok
}

func (f *fakeReadCache) SetAccount(_ context.Context, s *entities.AccountSnapshot, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[s.UserID] = s
}

func (f *fakeReadCache) GetActiveWagers(context.Context, string) ([]*entities.Wager, string, bool) {
	return nil, "", false
}

func (f *fakeReadCache) SetActiveWagers(context.Context, string, []*entities.Wager, string) {}

func TestGetBalance_ReadThroughCache(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "user@example.com", "")
	env.fund(t, user.UserID, entities.BucketTournament, 12)

	rc := &fakeReadCache{accounts: map[string]*entities.AccountSnapshot{}}
	core := application.NewCore(
		infrastructureFactory(env.store),
		clockwork.NewFakeClockAt(testStart),
		application.WithReadCache(rc),
	)

	first, err := core.GetBalance(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, dec("12").Equal(first.Account.TournamentBalance))
	require.Contains(t, rc.accounts, user.UserID)

	// A cached snapshot is served without touching the store
	rc.accounts[user.UserID].TournamentBalance = dec("99")
	second, err := core.GetBalance(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, dec("99").Equal(second.Account.TournamentBalance))
	assert.Equal(t, 2, rc.gets)
}

// generationCache keeps a generation per account like the Redis cache and
// runs beforeFill once, between the store read and the fill
type generationCache struct {
	mu          sync.Mutex
	accounts    map[string]*entities.AccountSnapshot
	generations map[string]int
	resets      int
	beforeFill  func()
}

func newGenerationCache() *generationCache {
	return &generationCache{
		accounts:    map[string]*entities.AccountSnapshot{},
		generations: map[string]int{},
	}
}

func (g *generationCache) version(userID string) string {
	return fmt.Sprintf("%d:%d", g.resets, g.generations[userID])
}

func (g *generationCache) GetAccount(_ context.Context, userID string) (*entities.AccountSnapshot, string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.accounts[userID]; ok {
		return s, "", true
	}
	return nil, g.version(userID), false
}

func (g *generationCache) SetAccount(_ context.Context, s *entities.AccountSnapshot, version string) {
	g.mu.Lock()
	hook := g.beforeFill
	g.beforeFill = nil
	g.mu.Unlock()
	if hook != nil {
		hook()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if version != "" && version == g.version(s.UserID) {
		g.accounts[s.UserID] = s
	}
}

func (g *generationCache) InvalidateAccount(_ context.Context, userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generations[userID]++
	delete(g.accounts, userID)
}

func (g *generationCache) InvalidateAllAccounts(context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resets++
	g.accounts = map[string]*entities.AccountSnapshot{}
}

func (g *generationCache) GetActiveWagers(context.Context, string) ([]*entities.Wager, string, bool) {
	return nil, "", false
}
func (g *generationCache) SetActiveWagers(context.Context, string, []*entities.Wager, string) {}
func (g *generationCache) InvalidateActiveWagers(context.Context, string)                    {}

func TestGetBalance_WriteBetweenReadAndFillIsNotCached(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "user@example.com", "")
	env.fund(t, user.UserID, entities.BucketPurchased, 100)

	dispatcher := infrastructure.NewLocalEventDispatcher()
	rc := newGenerationCache()
	cache.RegisterInvalidation(dispatcher, rc)
	core := application.NewCore(
		infrastructure.NewUnitOfWorkFactory(env.store, dispatcher),
		env.clock,
		application.WithReadCache(rc),
	)

	rc.beforeFill = func() {
		_, err := core.AdminRemoveBalance(adminCtx(), dto.AmountRequest{UserID: user.UserID, Amount: dec("60")})
		require.NoError(t, err)
	}

	first, err := core.GetBalance(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(first.Account.TotalMXI), "read committed before the debit")
	assert.NotContains(t, rc.accounts, user.UserID)

	second, err := core.GetBalance(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, dec("40").Equal(second.Account.TotalMXI), "total %s", second.Account.TotalMXI)
	assert.Contains(t, rc.accounts, user.UserID)
}

func TestCalculateAndUpdateVestingRewards(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "user@example.com", "")
	_, err := env.core.AdminAddBalanceWithoutCommissions(adminCtx(), dto.AddBalanceWithoutCommissionsRequest{
		UserID:    user.UserID,
		MXIAmount: dec("1000"),
	})
	require.NoError(t, err)

	env.clock.Advance(24 * time.Hour)
	resp, err := env.core.CalculateAndUpdateVestingRewards(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, resp.OldRewards.IsZero())
	assert.True(t, dec("1").Equal(resp.NewRewards), "1000 * 0.03 * 86400 / 2592000, got %s", resp.NewRewards)
	assert.True(t, dec("86400").Equal(resp.SecondsElapsed))

	again, err := env.core.CalculateAndUpdateVestingRewards(userCtx(user.UserID), dto.UserRequest{UserID: user.UserID})
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(again.NewRewards), "no time passed")

	_, err = env.core.CalculateAndUpdateVestingRewards(userCtx("other"), dto.UserRequest{UserID: user.UserID})
	require.ErrorIs(t, err, entities.ErrNotAuthorized)
}

func TestVesting_PurchasedChangesDoNotReachBackInTime(t *testing.T) {
	accrue := func(t *testing.T, env *testEnv, userID string) *dto.VestingRewardsResponse {
		t.Helper()
		resp, err := env.core.CalculateAndUpdateVestingRewards(userCtx(userID), dto.UserRequest{UserID: userID})
		require.NoError(t, err)
		return resp
	}

	t.Run("buying after an idle month earns nothing for the idle time", func(t *testing.T) {
		env := newTestEnv(t)
		ticking := env.register(t, "ticking@example.com", "")
		idle := env.register(t, "idle@example.com", "")

		env.clock.Advance(30 * 24 * time.Hour)
		accrue(t, env, ticking.UserID)
		for i, id := range []string{ticking.UserID, idle.UserID} {
			_, err := env.core.RecordPurchase(adminCtx(), dto.RecordPurchaseRequest{
				OrderID:   fmt.Sprintf("order-%d", i),
				UserID:    id,
				MXIAmount: dec("1000"),
			})
			require.NoError(t, err)
		}

		tickingRewards := accrue(t, env, ticking.UserID).NewRewards
		idleRewards := accrue(t, env, idle.UserID).NewRewards
		assert.True(t, tickingRewards.IsZero(), "ticking user rewards %s", tickingRewards)
		assert.True(t, idleRewards.Equal(tickingRewards), "idle user rewards %s", idleRewards)

		env.clock.Advance(24 * time.Hour)
		assert.True(t, dec("1").Equal(accrue(t, env, idle.UserID).NewRewards))
	})

	t.Run("a debit pays the old balance up to the debit", func(t *testing.T) {
		env := newTestEnv(t)
		user := env.register(t, "holder@example.com", "")
		_, err := env.core.AdminAddBalanceWithoutCommissions(adminCtx(), dto.AddBalanceWithoutCommissionsRequest{
			UserID:    user.UserID,
			MXIAmount: dec("1000"),
		})
		require.NoError(t, err)

		// 1000 for a day then 500 for a day
		env.clock.Advance(24 * time.Hour)
		_, err = env.core.AdminRemoveBalance(adminCtx(), dto.AmountRequest{UserID: user.UserID, Amount: dec("500")})
		require.NoError(t, err)
		env.clock.Advance(24 * time.Hour)

		assert.True(t, dec("1.5").Equal(accrue(t, env, user.UserID).NewRewards))
	})
}

func TestAccrueAll(t *testing.T) {
	env := newTestEnv(t)
	holders := env.players(t, 3, 0)
	for _, id := range holders[:2] {
		env.fund(t, id, entities.BucketPurchased, 1000)
	}

	env.clock.Advance(48 * time.Hour)
	accrued, err := env.core.AccrueAll(application.WithPrincipal(context.Background(), application.SystemPrincipal))
	require.NoError(t, err)
	assert.Equal(t, 2, accrued)

	assert.True(t, dec("2").Equal(env.balance(t, holders[0]).VestingAccrued))
	assert.True(t, env.balance(t, holders[2]).VestingAccrued.IsZero())
}
