package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestPointsLedger(t *testing.T) {
	h := newHarness(t)
	svc := h.points()
	u := h.customer("An", 0)

	t.Run("credit earns and retiers", func(t *testing.T) {
		tx, err := svc.Credit(h.ctx, u.ID, 1200, "")
		require.NoError(t, err)
		assert.Equal(t, core.PointsEarned, tx.Type)
		assert.EqualValues(t, 1200, tx.BalanceAfter)
		assert.Equal(t, "Cộng điểm thưởng", tx.Description)

		sum, err := svc.Summary(h.ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, core.TierSilver, sum.Tier)
		assert.Equal(t, core.TierGold, sum.NextTier)
		assert.EqualValues(t, 3800, sum.PointsToNextTier)
		assert.EqualValues(t, 1_200_000, sum.BalanceValue)
	})

	t.Run("redeem cannot overdraw", func(t *testing.T) {
		_, err := svc.CreateTransaction(h.ctx, core.PointTxInput{UserID: u.ID, Type: core.PointsRedeemed, Points: 5000, Description: "đổi quà"})
		assert.ErrorIs(t, err, core.ErrInsufficientPoints)
		assert.EqualValues(t, 1200, h.balance(u.ID))
	})

	t.Run("expiry takes at most the balance", func(t *testing.T) {
		tx, err := svc.CreateTransaction(h.ctx, core.PointTxInput{UserID: u.ID, Type: core.PointsExpired, Points: 5000, Description: "hết hạn"})
		require.NoError(t, err)
		assert.EqualValues(t, -1200, tx.Points)
		assert.Zero(t, tx.BalanceAfter)
	})

	t.Run("description is required", func(t *testing.T) {
		_, err := svc.CreateTransaction(h.ctx, core.PointTxInput{UserID: u.ID, Type: core.PointsAdjustment, Points: 10})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("zero adjustment", func(t *testing.T) {
		_, err := svc.CreateTransaction(h.ctx, core.PointTxInput{UserID: u.ID, Type: core.PointsAdjustment, Description: "x"})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("history pages newest first", func(t *testing.T) {
		res, err := svc.History(h.ctx, u.ID, core.Page{Page: 1, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Total)
		require.Len(t, res.Items, 1)
	})
}

func TestPointsConfig(t *testing.T) {
	h := newHarness(t)
	svc := h.points()
	a := h.customer("An", 600)
	b := h.customer("Bình", 2500)

	t.Run("rejects inverted thresholds", func(t *testing.T) {
		_, err := svc.UpdateConfig(h.ctx, core.PointsConfig{PointsValue: 1000, SilverThreshold: 500, GoldThreshold: 400, PointsPerOrder: 1})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("saving recalculates tiers", func(t *testing.T) {
		cfg, err := svc.UpdateConfig(h.ctx, core.PointsConfig{PointsValue: 500, SilverThreshold: 500, GoldThreshold: 2000, PointsPerOrder: 2})
		require.NoError(t, err)
		assert.Equal(t, h.now, cfg.UpdatedAt)

		ua, _ := h.store.Users.Get(h.ctx, a.ID)
		ub, _ := h.store.Users.Get(h.ctx, b.ID)
		assert.Equal(t, core.TierSilver, ua.Loyalty.Tier)
		assert.Equal(t, core.TierGold, ub.Loyalty.Tier)

		got, err := svc.Config(h.ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, got.PointsPerOrder)
	})
}

func TestPointsStats(t *testing.T) {
	h := newHarness(t)
	svc := h.points()
	a := h.customer("An", 0)
	h.customer("Bình", 0)

	_, err := svc.Credit(h.ctx, a.ID, 300, "thưởng")
	require.NoError(t, err)
	_, err = svc.CreateTransaction(h.ctx, core.PointTxInput{UserID: a.ID, Type: core.PointsRedeemed, Points: 100, Description: "đổi"})
	require.NoError(t, err)

	st, err := svc.Stats(h.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 300, st.Issued)
	assert.EqualValues(t, 100, st.Redeemed)
	assert.EqualValues(t, 1, st.ActiveMembers)
	assert.EqualValues(t, 2, st.MembersByTier[core.TierBronze])
	assert.EqualValues(t, 2, st.TransactionsLast30)
	require.Len(t, st.TopCustomers, 1)
	assert.Equal(t, a.ID, st.TopCustomers[0].ID)

	require.Len(t, st.MonthlyTrend, 6)
	assert.Equal(t, "10/2025", st.MonthlyTrend[0].Label)
	assert.Equal(t, h.now.Format("01/2006"), st.MonthlyTrend[5].Label)
	assert.EqualValues(t, 300, st.MonthlyTrend[5].Points)
}
