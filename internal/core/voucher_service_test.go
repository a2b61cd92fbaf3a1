package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestVoucherValidate(t *testing.T) {
	h := newHarness(t)
	svc := h.vouchers()
	u := h.customer("An", 0)

	pct := h.voucher("SALE20", core.DiscountPercentage, 20, core.RewardGeneral)
	_, err := svc.Update(h.ctx, pct.ID, core.VoucherInput{
		Code: "sale20", DiscountType: core.DiscountPercentage, DiscountValue: 20,
		MaxDiscountAmount: 50_000, MinOrderAmount: 100_000,
		StartDate: pct.StartDate, EndDate: pct.EndDate,
		MaxIssued: 10, MaxUsesPerUser: 1,
	})
	require.NoError(t, err)

	t.Run("caps percentage discounts", func(t *testing.T) {
		q, err := svc.Validate(h.ctx, u.ID, " sale20 ", 400_000)
		require.NoError(t, err)
		assert.EqualValues(t, 50_000, q.Discount)
		assert.EqualValues(t, 350_000, q.FinalAmount)
	})

	t.Run("enforces the minimum order", func(t *testing.T) {
		_, err := svc.Validate(h.ctx, u.ID, "SALE20", 99_000)
		assert.ErrorIs(t, err, core.ErrVoucherMinOrder)
	})

	t.Run("unknown codes", func(t *testing.T) {
		_, err := svc.Validate(h.ctx, u.ID, "NOPE", 100_000)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("window closes", func(t *testing.T) {
		h.voucher("SHORT", core.DiscountFixedAmount, 10_000, core.RewardGeneral)
		later := newHarness(t)
		later.store = h.store
		later.now = h.now.Add(31 * 24 * time.Hour)
		_, err := later.vouchers().Validate(h.ctx, u.ID, "SHORT", 100_000)
		assert.ErrorIs(t, err, core.ErrVoucherInactive)
	})

	t.Run("disabled vouchers stay inactive", func(t *testing.T) {
		off := false
		v := h.voucher("PAUSED", core.DiscountFixedAmount, 10_000, core.RewardGeneral)
		_, err := svc.Update(h.ctx, v.ID, core.VoucherInput{
			Code: "PAUSED", DiscountType: core.DiscountFixedAmount, DiscountValue: 10_000,
			StartDate: v.StartDate, EndDate: v.EndDate, MaxIssued: 10, MaxUsesPerUser: 1,
			IsActive: &off,
		})
		require.NoError(t, err)

		_, err = svc.Validate(h.ctx, u.ID, "PAUSED", 100_000)
		assert.ErrorIs(t, err, core.ErrVoucherInactive)
		n, err := svc.SyncWindows(h.ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestVoucherClaim(t *testing.T) {
	h := newHarness(t)
	svc := h.vouchers()
	a := h.customer("An", 0)
	b := h.customer("Bình", 0)
	v := h.voucher("WELCOME", core.DiscountFixedAmount, 20_000, core.RewardGeneral)

	uv, err := svc.Claim(h.ctx, a.ID, "welcome")
	require.NoError(t, err)
	assert.Equal(t, core.SourcePromotion, uv.Source)

	_, err = svc.Claim(h.ctx, a.ID, "WELCOME")
	assert.ErrorIs(t, err, core.ErrVoucherNotClaimed, "one claim per user")

	_, err = svc.Claim(h.ctx, b.ID, "WELCOME")
	require.NoError(t, err)

	stored, err := svc.AdminGet(h.ctx, v.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stored.ClaimsCount)

	mine, err := svc.Mine(h.ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Voucher)
	assert.Equal(t, "WELCOME", mine[0].Voucher.Code)

	review := h.voucher("REVIEW10", core.DiscountPercentage, 10, core.RewardReview)
	_, err = svc.Claim(h.ctx, a.ID, review.Code)
	assert.ErrorIs(t, err, core.ErrVoucherNotClaimed, "review vouchers come from reviews")

	avail, err := svc.Available(h.ctx)
	require.NoError(t, err)
	codes := make([]string, 0, len(avail))
	for _, v := range avail {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, "WELCOME")
	assert.NotContains(t, codes, "REVIEW10")
}

func TestVoucherAdmin(t *testing.T) {
	h := newHarness(t)
	svc := h.vouchers()
	u := h.customer("An", 0)
	p := h.product("ao", 100_000, 5)
	v := h.voucher("USED", core.DiscountFixedAmount, 10_000, core.RewardGeneral)

	_, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
		Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: "x", Phone: "1", VoucherCode: "USED",
	})
	require.NoError(t, err)

	t.Run("used vouchers cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(h.ctx, v.ID), core.ErrVoucherInUse)
	})

	t.Run("max issued must stay positive", func(t *testing.T) {
		_, err := svc.Update(h.ctx, v.ID, core.VoucherInput{
			Code: "USED", DiscountType: core.DiscountFixedAmount, DiscountValue: 10_000,
			StartDate: v.StartDate, EndDate: v.EndDate, MaxIssued: 0, MaxUsesPerUser: 1,
		})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("duplicate codes", func(t *testing.T) {
		_, err := svc.Create(h.ctx, core.VoucherInput{
			Code: "used", DiscountType: core.DiscountFreeShip,
			StartDate: h.now, EndDate: h.now.Add(time.Hour), MaxIssued: 1, MaxUsesPerUser: 1,
		})
		assert.ErrorIs(t, err, core.ErrVoucherCodeTaken)
	})

	t.Run("stats", func(t *testing.T) {
		st, err := svc.Stats(h.ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, st.Total)
		assert.EqualValues(t, 1, st.Active)
		assert.EqualValues(t, 1, st.TotalUsage)
		assert.Empty(t, st.TopClaimed)
	})
}
