package application_test

import (
	"testing"

	"mxiledger/application/dto"
	"mxiledger/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAddBalance(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.register(t, "referrer@example.com", "")
	user := env.register(t, "user@example.com", referrer.ReferralCode)

	t.Run("without commissions leaves the referrer untouched", func(t *testing.T) {
		resp, err := env.core.AdminAddBalanceWithoutCommissions(adminCtx(), dto.AddBalanceWithoutCommissionsRequest{
			UserID:    user.UserID,
			MXIAmount: dec("100"),
		})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.True(t, dec("100").Equal(resp.NewPurchasedMXI))
		assert.True(t, dec("100").Equal(resp.NewTotalMXI))
		assert.True(t, env.balance(t, referrer.UserID).CommissionBalance.IsZero())
	})

	t.Run("with commissions pays the referrer", func(t *testing.T) {
		resp, err := env.core.AdminAddBalanceWithCommissions(adminCtx(), dto.AmountRequest{
			UserID: user.UserID,
			Amount: dec("200"),
		})
		require.NoError(t, err)
		assert.True(t, dec("300").Equal(resp.NewPurchasedMXI))
		assert.True(t, dec("10").Equal(resp.TotalCommissions))
		assert.Equal(t, 1, resp.ReferrersPaid)
		assert.True(t, dec("10").Equal(env.balance(t, referrer.UserID).CommissionBalance))
	})

	t.Run("successful operations are audited with balances", func(t *testing.T) {
		records := env.audits(t)
		require.Len(t, records, 2)
		latest := records[0]
		assert.Equal(t, "admin_add_balance_with_commissions", latest.Operation)
		assert.Equal(t, "admin-1", latest.OperatorID)
		assert.Equal(t, entities.AuditOutcomeSuccess, latest.Outcome)
		require.NotNil(t, latest.OldBalance)
		require.NotNil(t, latest.NewBalance)
		assert.True(t, dec("100").Equal(latest.OldBalance.Purchased))
		assert.True(t, dec("300").Equal(latest.NewBalance.Purchased))
	})
}

func TestAdminRemoveBalance_DrainOrder(t *testing.T) {
	tests := []struct {
		name           string
		amount         string
		wantPurchased  string
		wantCommission string
		wantTournament string
		wantDebits     int
		wantErr        error
	}{
		{name: "purchased only", amount: "30", wantPurchased: "20", wantCommission: "20", wantTournament: "30", wantDebits: 1},
		{name: "into commission", amount: "60", wantPurchased: "0", wantCommission: "10", wantTournament: "30", wantDebits: 2},
		{name: "all three buckets", amount: "85", wantPurchased: "0", wantCommission: "0", wantTournament: "15", wantDebits: 3},
		{name: "everything", amount: "100", wantPurchased: "0", wantCommission: "0", wantTournament: "0", wantDebits: 3},
		{name: "more than spendable", amount: "100.000000000001", wantErr: entities.ErrInsufficientBalance},
		{name: "non positive", amount: "0", wantErr: entities.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			user := env.register(t, "user@example.com", "")
			env.fund(t, user.UserID, entities.BucketPurchased, 50)
			env.fund(t, user.UserID, entities.BucketCommission, 20)
			env.fund(t, user.UserID, entities.BucketTournament, 30)
			env.fund(t, user.UserID, entities.BucketVesting, 7)

			resp, err := env.core.AdminRemoveBalance(adminCtx(), dto.AmountRequest{UserID: user.UserID, Amount: dec(tt.amount)})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				view := env.balance(t, user.UserID)
				assert.True(t, dec("50").Equal(view.Purchased), "failed debit must not change balances")
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.Debits, tt.wantDebits)

			view := env.balance(t, user.UserID)
			assert.True(t, dec(tt.wantPurchased).Equal(view.Purchased), "purchased %s", view.Purchased)
			assert.True(t, dec(tt.wantCommission).Equal(view.CommissionBalance), "commission %s", view.CommissionBalance)
			assert.True(t, dec(tt.wantTournament).Equal(view.TournamentBalance), "tournament %s", view.TournamentBalance)
			assert.True(t, dec("7").Equal(view.VestingAccrued), "vesting is never debited")
		})
	}
}

func TestAdminOperations_FailuresAreAudited(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "user@example.com", "")

	t.Run("business rule failure", func(t *testing.T) {
		_, err := env.core.AdminRemoveBalance(adminCtx(), dto.AmountRequest{UserID: user.UserID, Amount: dec("5")})
		require.ErrorIs(t, err, entities.ErrInsufficientBalance)

		records := env.audits(t)
		require.NotEmpty(t, records)
		assert.Equal(t, "admin_remove_balance", records[0].Operation)
		assert.Equal(t, entities.AuditOutcomeFailure, records[0].Outcome)
		require.NotNil(t, records[0].ErrorMessage)
		assert.Contains(t, *records[0].ErrorMessage, "insufficient balance")
		assert.Nil(t, records[0].NewBalance)
	})

	t.Run("non admin caller", func(t *testing.T) {
		_, err := env.core.AdminAddBalanceWithoutCommissions(userCtx(user.UserID), dto.AddBalanceWithoutCommissionsRequest{
			UserID:    user.UserID,
			MXIAmount: dec("1000"),
		})
		require.ErrorIs(t, err, entities.ErrNotAuthorized)

		records := env.audits(t)
		assert.Equal(t, "admin_add_balance_without_commissions", records[0].Operation)
		assert.Equal(t, user.UserID, records[0].OperatorID)
		assert.Equal(t, entities.AuditOutcomeFailure, records[0].Outcome)
		assert.True(t, env.balance(t, user.UserID).Purchased.IsZero())
	})
}

func TestAdminLinkReferral(t *testing.T) {
	env := newTestEnv(t)
	a := env.register(t, "a@example.com", "")
	b := env.register(t, "b@example.com", "")
	c := env.register(t, "c@example.com", "")

	_, err := env.core.AdminAddBalanceWithoutCommissions(adminCtx(), dto.AddBalanceWithoutCommissionsRequest{
		UserID:    c.UserID,
		MXIAmount: dec("1000"),
	})
	require.NoError(t, err)

	// b refers c first, then a refers b: c must still see a as level 2
	first, err := env.core.AdminLinkReferral(adminCtx(), dto.LinkReferralRequest{ReferredEmail: " C@Example.com ", ReferrerCode: b.ReferralCode})
	require.NoError(t, err)
	assert.Equal(t, 1, first.EdgesCreated)
	assert.True(t, dec("50").Equal(first.TotalCommissionsDistributed))

	second, err := env.core.AdminLinkReferral(adminCtx(), dto.LinkReferralRequest{ReferredEmail: "b@example.com", ReferrerCode: a.ReferralCode})
	require.NoError(t, err)
	assert.Equal(t, 2, second.EdgesCreated)
	assert.True(t, second.TotalCommissionsDistributed.IsZero(), "b has no purchases")

	_, err = env.core.AdminAddBalanceWithCommissions(adminCtx(), dto.AmountRequest{UserID: c.UserID, Amount: dec("100")})
	require.NoError(t, err)
	assert.True(t, dec("55").Equal(env.balance(t, b.UserID).CommissionBalance))
	assert.True(t, dec("2").Equal(env.balance(t, a.UserID).CommissionBalance))

	t.Run("cycle is rejected", func(t *testing.T) {
		_, err := env.core.AdminLinkReferral(adminCtx(), dto.LinkReferralRequest{ReferredEmail: "a@example.com", ReferrerCode: c.ReferralCode})
		require.ErrorIs(t, err, entities.ErrCorruptReferralGraph)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := env.core.AdminLinkReferral(adminCtx(), dto.LinkReferralRequest{ReferredEmail: "a@example.com", ReferrerCode: "NOPE1234"})
		require.ErrorIs(t, err, entities.ErrNotFound)
	})
}

func TestAdminSetGameCapacity(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.core.AdminSetGameCapacity(adminCtx(), dto.SetGameCapacityRequest{GameType: "chess", MaxActiveTournaments: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.MaxActiveTournaments)
	assert.Equal(t, 1, resp.Available)

	_, err = env.core.AdminSetGameCapacity(adminCtx(), dto.SetGameCapacityRequest{GameType: "chess", MaxActiveTournaments: -1})
	require.ErrorIs(t, err, entities.ErrInvalidRequest)

	status, err := env.core.GetCapacity(userCtx("anyone"), "chess")
	require.NoError(t, err)
	assert.Equal(t, 1, status.MaxActiveTournaments)

	records := env.audits(t)
	require.Len(t, records, 2)
	assert.Equal(t, entities.AuditOutcomeFailure, records[0].Outcome)
	assert.Equal(t, entities.AuditOutcomeSuccess, records[1].Outcome)
	assert.Equal(t, 10, records[1].Details["previous_max_active_tournaments"])
}

func TestAdminResetGlobalVestingRewards(t *testing.T) {
	env := newTestEnv(t)
	users := env.players(t, 3, 0)
	for _, id := range users {
		env.fund(t, id, entities.BucketVesting, 4)
	}

	resp, err := env.core.AdminResetGlobalVestingRewards(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 3, resp.AffectedUsers)
	assert.True(t, dec("12").Equal(resp.TotalRewardsReset))
	for _, id := range users {
		assert.True(t, env.balance(t, id).VestingAccrued.IsZero())
	}
}
