package application_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"mxiledger/application"
	"mxiledger/application/dto"
	"mxiledger/domain/entities"
	"mxiledger/infrastructure"
	"mxiledger/repository/memory"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	core  *application.Core
	store *memory.Store
	clock *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore(10 * time.Second)
	clock := clockwork.NewFakeClockAt(testStart)
	return &testEnv{
		core:  application.NewCore(infrastructureFactory(store), clock),
		store: store,
		clock: clock,
	}
}

func infrastructureFactory(store *memory.Store) *infrastructure.UnitOfWorkFactory {
	return infrastructure.NewUnitOfWorkFactory(store, infrastructure.NewLocalEventDispatcher())
}

func adminCtx() context.Context {
	return application.WithPrincipal(context.Background(), application.Principal{UserID: "admin-1", Admin: true})
}

func userCtx(userID string) context.Context {
	return application.WithPrincipal(context.Background(), application.Principal{UserID: userID})
}

// register creates an account through the admin operation
func (e *testEnv) register(t *testing.T, email, referralCode string) *dto.RegisterAccountResponse {
	t.Helper()
	resp, err := e.core.RegisterAccount(adminCtx(), dto.RegisterAccountRequest{Email: email, ReferralCode: referralCode})
	require.NoError(t, err)
	return resp
}

// fund credits a bucket directly in the store, outside the ledger
func (e *testEnv) fund(t *testing.T, userID string, bucket entities.Bucket, amount int64) {
	t.Helper()
	ctx := context.Background()
	uow := e.store.CreateWithPublisher(infrastructure.NewNoopEventPublisher())
	require.NoError(t, uow.Begin(ctx))
	account, err := uow.AccountRepository().GetByUserIDForUpdate(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, account)
	require.NoError(t, account.Credit(bucket, decimal.NewFromInt(amount)))
	require.NoError(t, uow.AccountRepository().Update(ctx, account))
	require.NoError(t, uow.Commit())
}

// players registers n funded users
func (e *testEnv) players(t *testing.T, n int, tournament int64) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		resp := e.register(t, fmt.Sprintf("player%d@example.com", i), "")
		if tournament > 0 {
			e.fund(t, resp.UserID, entities.BucketTournament, tournament)
		}
		ids = append(ids, resp.UserID)
	}
	return ids
}

func (e *testEnv) balance(t *testing.T, userID string) *dto.AccountView {
	t.Helper()
	resp, err := e.core.GetBalance(adminCtx(), dto.UserRequest{UserID: userID})
	require.NoError(t, err)
	return resp.Account
}

func (e *testEnv) audits(t *testing.T) []*entities.AuditRecord {
	t.Helper()
	records, err := e.core.ListAuditRecords(adminCtx(), 100)
	require.NoError(t, err)
	return records
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}
