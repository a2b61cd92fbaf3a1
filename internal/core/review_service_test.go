package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestReviewCreate(t *testing.T) {
	h := newHarness(t)
	svc := h.reviews()
	u := h.customer("An", 0)
	p := h.product("ao", 100_000, 5)
	other := h.product("quan", 100_000, 5)
	o := h.deliveredOrder(u, p, 1)
	h.voucher("THANKS", core.DiscountPercentage, 10, core.RewardReview)
	h.voucher("GENERAL", core.DiscountPercentage, 10, core.RewardGeneral)

	t.Run("delivered order offers rewards", func(t *testing.T) {
		res, err := svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 5, Comment: "Đẹp"})
		require.NoError(t, err)
		assert.Equal(t, "An", res.Review.UserName)
		assert.EqualValues(t, 100, res.Rewards.Points)
		require.Len(t, res.Rewards.Vouchers, 1)
		assert.Equal(t, "THANKS", res.Rewards.Vouchers[0].Code)
	})

	t.Run("one review per product and order", func(t *testing.T) {
		_, err := svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 4})
		assert.ErrorIs(t, err, core.ErrReviewExists)
	})

	t.Run("product must be on the order", func(t *testing.T) {
		_, err := svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: other.ID, OrderID: o.ID, Rating: 4})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("someone else's order", func(t *testing.T) {
		stranger := h.customer("Bình", 0)
		_, err := svc.Create(h.ctx, stranger.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 4})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("undelivered orders", func(t *testing.T) {
		pending, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: other.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)
		_, err = svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: other.ID, OrderID: pending.ID, Rating: 4})
		assert.ErrorIs(t, err, core.ErrInvalidState)
	})

	t.Run("rating bounds", func(t *testing.T) {
		_, err := svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 6})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("product summary", func(t *testing.T) {
		got, err := svc.ForProduct(h.ctx, p.ID, core.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Summary.Count)
		assert.InDelta(t, 5.0, got.Summary.Average, 0.001)
	})
}

func TestReviewRewards(t *testing.T) {
	setup := func(t *testing.T) (*harness, core.User, core.Review) {
		h := newHarness(t)
		u := h.customer("An", 0)
		p := h.product("ao", 100_000, 5)
		o := h.deliveredOrder(u, p, 1)
		res, err := h.reviews().Create(h.ctx, u.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 4})
		require.NoError(t, err)
		return h, u, res.Review
	}

	t.Run("points are granted once", func(t *testing.T) {
		h, u, r := setup(t)
		before := h.balance(u.ID)

		res, err := h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardPoints})
		require.NoError(t, err)
		assert.EqualValues(t, 100, res.Points)
		assert.Equal(t, before+100, h.balance(u.ID))

		_, err = h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardVoucher, VoucherCode: "ANY"})
		assert.ErrorIs(t, err, core.ErrRewardClaimed)
	})

	t.Run("voucher reward claims a slot", func(t *testing.T) {
		h, u, r := setup(t)
		v := h.voucher("THANKS", core.DiscountFixedAmount, 20_000, core.RewardReview)

		res, err := h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardVoucher, VoucherCode: "thanks"})
		require.NoError(t, err)
		require.NotNil(t, res.UserVoucher)
		assert.Equal(t, core.SourceReview, res.UserVoucher.Source)

		stored, _ := h.store.Vouchers.Get(h.ctx, v.ID)
		assert.EqualValues(t, 1, stored.ClaimsCount)
	})

	t.Run("general vouchers are not rewards", func(t *testing.T) {
		h, u, r := setup(t)
		h.voucher("GENERAL", core.DiscountFixedAmount, 20_000, core.RewardGeneral)

		_, err := h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardVoucher, VoucherCode: "GENERAL"})
		assert.ErrorIs(t, err, core.ErrVoucherNotClaimed)

		// The failed pick leaves the reward open.
		_, err = h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardPoints})
		assert.NoError(t, err)
	})

	t.Run("exhausted voucher resets the claim", func(t *testing.T) {
		h, u, r := setup(t)
		v := h.voucher("GONE", core.DiscountFixedAmount, 20_000, core.RewardReview)
		for range v.MaxIssued {
			require.NoError(t, h.store.Vouchers.TryClaim(h.ctx, v.ID))
		}

		_, err := h.reviews().ClaimReward(h.ctx, u.ID, r.ID, core.RewardChoice{Kind: core.RewardVoucher, VoucherCode: "GONE"})
		assert.ErrorIs(t, err, core.ErrVoucherNotClaimed)

		got, err := h.store.Reviews.Get(h.ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, got.RewardClaimed)
	})

	t.Run("only the author can claim", func(t *testing.T) {
		h, _, r := setup(t)
		stranger := h.customer("Bình", 0)
		_, err := h.reviews().ClaimReward(h.ctx, stranger.ID, r.ID, core.RewardChoice{Kind: core.RewardPoints})
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestReviewModeration(t *testing.T) {
	h := newHarness(t)
	svc := h.reviews()
	u := h.customer("An", 0)
	p := h.product("ao", 100_000, 5)
	o := h.deliveredOrder(u, p, 1)
	created, err := svc.Create(h.ctx, u.ID, core.ReviewInput{ProductID: p.ID, OrderID: o.ID, Rating: 3})
	require.NoError(t, err)
	id := created.Review.ID

	r, err := svc.Reply(h.ctx, "admin-1", id, "  Cảm ơn bạn ")
	require.NoError(t, err)
	require.NotNil(t, r.AdminReply)
	assert.Equal(t, "Cảm ơn bạn", r.AdminReply.Comment)

	_, err = svc.Reply(h.ctx, "admin-1", id, " ")
	assert.ErrorIs(t, err, core.ErrValidation)

	require.NoError(t, svc.Delete(h.ctx, id))
	got, err := svc.ForProduct(h.ctx, p.ID, core.Page{})
	require.NoError(t, err)
	assert.Zero(t, got.Total)
	assert.Zero(t, got.Summary.Count)

	all, err := svc.AdminList(h.ctx, core.ReviewFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, all.Total)

	require.NoError(t, svc.Restore(h.ctx, id))
	got, err = svc.ForProduct(h.ctx, p.ID, core.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Total)
}
