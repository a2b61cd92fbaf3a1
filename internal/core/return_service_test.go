package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
)

func TestReturnWindow(t *testing.T) {
	h := newHarness(t)
	svc := h.returns()
	u := h.customer("An", 0)
	p := h.product("ao", 470_000, 5)
	o := h.deliveredOrder(u, p, 1)

	t.Run("eligible right after delivery", func(t *testing.T) {
		el, err := svc.Eligibility(h.ctx, u.ID, o.ID)
		require.NoError(t, err)
		assert.True(t, el.Eligible)
		require.NotNil(t, el.Deadline)
		assert.Equal(t, h.now.Add(core.ReturnWindow), *el.Deadline)
	})

	t.Run("other reason needs text", func(t *testing.T) {
		_, err := svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonOther})
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("closed after a day", func(t *testing.T) {
		h.advance(core.ReturnWindow + time.Minute)
		defer h.advance(-(core.ReturnWindow + time.Minute))

		el, err := svc.Eligibility(h.ctx, u.ID, o.ID)
		require.NoError(t, err)
		assert.False(t, el.Eligible)

		_, err = svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonDamaged})
		assert.ErrorIs(t, err, core.ErrReturnWindow)
	})

	t.Run("one open request per order", func(t *testing.T) {
		r, err := svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonSizeNotFit})
		require.NoError(t, err)
		assert.Equal(t, "Size không vừa", r.ReasonText)
		assert.EqualValues(t, 500_000, r.RefundAmount)

		_, err = svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonDamaged})
		assert.ErrorIs(t, err, core.ErrReturnExists)

		el, err := svc.Eligibility(h.ctx, u.ID, o.ID)
		require.NoError(t, err)
		assert.False(t, el.Eligible)
	})

	t.Run("undelivered orders", func(t *testing.T) {
		pending, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)
		_, err = svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: pending.ID, Reason: core.ReasonDamaged})
		assert.ErrorIs(t, err, core.ErrInvalidState)
	})
}

func TestReturnDecisions(t *testing.T) {
	t.Run("approve refunds as points", func(t *testing.T) {
		h := newHarness(t)
		svc := h.returns()
		u := h.customer("An", 0)
		p := h.product("ao", 470_000, 5)
		o := h.deliveredOrder(u, p, 1)
		earned := h.balance(u.ID)

		r, err := svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonDamaged})
		require.NoError(t, err)

		approved, err := svc.Approve(h.ctx, "admin-1", r.ID, " ok ")
		require.NoError(t, err)
		assert.Equal(t, core.ReturnApproved, approved.Status)
		assert.EqualValues(t, 500, approved.PointsAwarded)
		assert.Equal(t, "ok", approved.AdminNote)
		assert.Equal(t, earned+500, h.balance(u.ID))

		order, err := h.store.Orders.Get(h.ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, core.PaymentRefunded, order.PaymentStatus)

		_, err = svc.Approve(h.ctx, "admin-1", r.ID, "")
		assert.ErrorIs(t, err, core.ErrReturnNotPending)

		st, err := svc.Stats(h.ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, st.Total)
		assert.EqualValues(t, 500_000, st.TotalRefunded)
		assert.EqualValues(t, 500, st.PointsAwarded)
	})

	t.Run("failed points credit leaves the request pending", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Cường", 0)
		p := h.product("ao", 470_000, 5)
		o := h.deliveredOrder(u, p, 1)
		earned := h.balance(u.ID)

		users := &flakyUsers{UserRepo: h.store.Users, err: errors.New("connection reset")}
		svc := core.NewReturnService(core.ReturnDeps{
			Returns:      h.store.Returns,
			Orders:       h.store.Orders,
			Users:        users,
			PointTxs:     h.store.PointTxs,
			PointsConfig: h.store.PointsConfig,
			Notifier:     h.notifications(),
			Log:          logging.Discard(),
		}, h.opts()...)

		r, err := svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonDamaged})
		require.NoError(t, err)

		_, err = svc.Approve(h.ctx, "admin-1", r.ID, "ok")
		require.ErrorIs(t, err, users.err)

		stored, err := svc.AdminGet(h.ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, core.ReturnPending, stored.Status)
		assert.Zero(t, stored.PointsAwarded)
		assert.Nil(t, stored.ProcessedAt)
		assert.Equal(t, earned, h.balance(u.ID))

		users.err = nil
		approved, err := svc.Approve(h.ctx, "admin-1", r.ID, "ok")
		require.NoError(t, err)
		assert.Equal(t, core.ReturnApproved, approved.Status)
		assert.Equal(t, earned+500, h.balance(u.ID))
	})

	t.Run("reject needs a note and reopens the order", func(t *testing.T) {
		h := newHarness(t)
		svc := h.returns()
		u := h.customer("Bình", 0)
		p := h.product("ao", 100_000, 5)
		o := h.deliveredOrder(u, p, 1)

		r, err := svc.Create(h.ctx, u.ID, core.ReturnInput{OrderID: o.ID, Reason: core.ReasonChangedMind})
		require.NoError(t, err)

		_, err = svc.Reject(h.ctx, "admin-1", r.ID, "")
		assert.ErrorIs(t, err, core.ErrValidation)

		rejected, err := svc.Reject(h.ctx, "admin-1", r.ID, "Hàng đã qua sử dụng")
		require.NoError(t, err)
		assert.Equal(t, core.ReturnRejected, rejected.Status)
		assert.Zero(t, rejected.PointsAwarded)

		el, err := svc.Eligibility(h.ctx, u.ID, o.ID)
		require.NoError(t, err)
		assert.True(t, el.Eligible)

		mine, err := svc.Mine(h.ctx, u.ID, core.Page{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, mine.Total)
	})
}

// flakyUsers fails balance changes while err is set.
type flakyUsers struct {
	core.UserRepo
	err error
}

func (f *flakyUsers) AdjustPoints(ctx context.Context, id string, delta int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.UserRepo.AdjustPoints(ctx, id, delta)
}
