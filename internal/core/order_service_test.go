package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestOrderCreate(t *testing.T) {
	t.Run("prices items and reserves stock", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("An", 0)
		p := h.product("ao-thun", 200_000, 5)
		require.NoError(t, h.store.Products.SetDiscount(h.ctx, p.ID, 10, h.now))

		o, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 2}},
			ShippingAddress: "  12 Lê Lợi  ",
			Phone:           "0900000000",
		})
		require.NoError(t, err)

		assert.Equal(t, "ORD-2026-000001", o.Number)
		assert.Equal(t, core.OrderPending, o.Status)
		assert.Equal(t, core.PaymentCOD, o.PaymentMethod)
		assert.EqualValues(t, 360_000, o.Subtotal)
		assert.EqualValues(t, 390_000, o.TotalPrice)
		assert.Equal(t, "12 Lê Lợi", o.ShippingAddress)
		require.Len(t, o.Items, 1)
		assert.EqualValues(t, 180_000, o.Items[0].DiscountedPrice)

		got, err := h.store.Products.Get(h.ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Stock)
		assert.EqualValues(t, 2, got.SoldCount)
	})

	t.Run("sized products need a size and take from it", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Bình", 0)
		p := h.product("giay", 500_000, 0, core.SizeStock{Size: "40", Stock: 1}, core.SizeStock{Size: "41", Stock: 2})
		svc := h.orders()

		_, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		assert.ErrorIs(t, err, core.ErrValidation)

		_, err = svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Size: "41", Quantity: 2}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		got, _ := h.store.Products.Get(h.ctx, p.ID)
		assert.Equal(t, 0, got.Sizes[1].Stock)
		assert.Equal(t, 1, got.Stock)
	})

	t.Run("insufficient stock on a later line releases earlier lines", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Chi", 0)
		a := h.product("a", 100_000, 5)
		b := h.product("b", 100_000, 1)

		_, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items: []core.OrderItemInput{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: b.ID, Quantity: 2},
			},
			ShippingAddress: "x", Phone: "1",
		})
		require.ErrorIs(t, err, core.ErrInsufficientStock)

		got, _ := h.store.Products.Get(h.ctx, a.ID)
		assert.Equal(t, 5, got.Stock)
		assert.Zero(t, got.SoldCount)
	})

	t.Run("voucher and points reduce the total", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Dũng", 50)
		p := h.product("quan", 300_000, 10)
		v := h.voucher("GIAM10", core.DiscountPercentage, 10, core.RewardGeneral)

		o, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
			VoucherCode: "giam10",
			PointsToUse: 20,
		})
		require.NoError(t, err)

		assert.Equal(t, v.ID, o.VoucherID)
		assert.EqualValues(t, 30_000, o.VoucherDiscount)
		assert.EqualValues(t, 20, o.PointsUsed)
		assert.EqualValues(t, 20_000, o.PointsDiscount)
		assert.EqualValues(t, 300_000-30_000-20_000+30_000, o.TotalPrice)
		assert.EqualValues(t, 30, h.balance(u.ID))

		stored, _ := h.store.Vouchers.Get(h.ctx, v.ID)
		assert.EqualValues(t, 1, stored.UsesCount)
	})

	t.Run("free ship voucher zeroes the fee", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Em", 0)
		p := h.product("mu", 100_000, 10)
		h.voucher("FREESHIP", core.DiscountFreeShip, 0, core.RewardGeneral)

		o, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
			VoucherCode: "FREESHIP",
		})
		require.NoError(t, err)
		assert.Zero(t, o.ShippingFee)
		assert.EqualValues(t, 100_000, o.TotalPrice)
	})

	t.Run("points beyond the balance undo stock and voucher", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Giang", 5)
		p := h.product("vay", 300_000, 2)
		v := h.voucher("GIAM50K", core.DiscountFixedAmount, 50_000, core.RewardGeneral)

		_, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
			VoucherCode: "GIAM50K",
			PointsToUse: 10,
		})
		require.ErrorIs(t, err, core.ErrInsufficientPoints)

		got, _ := h.store.Products.Get(h.ctx, p.ID)
		assert.Equal(t, 2, got.Stock)
		stored, _ := h.store.Vouchers.Get(h.ctx, v.ID)
		assert.Zero(t, stored.UsesCount)
		claimed, used, _ := h.store.UserVouchers.CountForUser(h.ctx, u.ID, v.ID)
		assert.Zero(t, claimed)
		assert.Zero(t, used)
		assert.EqualValues(t, 5, h.balance(u.ID))
	})

	t.Run("ordered lines leave the cart", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Hà", 0)
		a := h.product("a", 100_000, 5)
		b := h.product("b", 100_000, 5)
		carts := core.NewCartService(h.store.Carts, h.store.Products, h.opts()...)
		_, err := carts.AddItem(h.ctx, u.ID, core.AddCartItemInput{ProductID: a.ID, Quantity: 1})
		require.NoError(t, err)
		_, err = carts.AddItem(h.ctx, u.ID, core.AddCartItemInput{ProductID: b.ID, Quantity: 1})
		require.NoError(t, err)

		_, err = h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: a.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		view, err := carts.Get(h.ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, view.Lines, 1)
		assert.Equal(t, b.ID, view.Lines[0].ProductID)
	})

	t.Run("notifies the customer and the admin feed", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Khoa", 0)
		p := h.product("a", 100_000, 5)
		_, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		n, _ := h.store.Notifications.CountUnread(h.ctx, u.ID)
		assert.EqualValues(t, 1, n)
		n, _ = h.store.Notifications.CountUnread(h.ctx, core.AdminRecipient)
		assert.EqualValues(t, 1, n)
	})
}

func TestOrderTransitions(t *testing.T) {
	t.Run("cancel restores stock, voucher and points", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Lan", 100)
		p := h.product("ao", 200_000, 3)
		v := h.voucher("GIAM20K", core.DiscountFixedAmount, 20_000, core.RewardGeneral)
		svc := h.orders()

		o, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 2}},
			ShippingAddress: "x", Phone: "1",
			VoucherCode: "GIAM20K",
			PointsToUse: 40,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 60, h.balance(u.ID))

		cancelled, err := svc.CancelMine(h.ctx, u.ID, o.ID, "")
		require.NoError(t, err)
		assert.Equal(t, core.OrderCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.CancelledAt)

		got, _ := h.store.Products.Get(h.ctx, p.ID)
		assert.Equal(t, 3, got.Stock)
		stored, _ := h.store.Vouchers.Get(h.ctx, v.ID)
		assert.Zero(t, stored.UsesCount)
		assert.EqualValues(t, 100, h.balance(u.ID))

		claimed, _, _ := h.store.UserVouchers.CountForUser(h.ctx, u.ID, v.ID)
		assert.Zero(t, claimed)
		mine, err := h.vouchers().Mine(h.ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, mine)
		_, err = h.vouchers().Claim(h.ctx, u.ID, "GIAM20K")
		assert.NoError(t, err)
	})

	t.Run("cancel hands a claimed voucher back unused", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Linh", 0)
		p := h.product("ao", 200_000, 3)
		v := h.voucher("GIAM10K", core.DiscountFixedAmount, 10_000, core.RewardGeneral)
		_, err := h.vouchers().Claim(h.ctx, u.ID, "GIAM10K")
		require.NoError(t, err)
		svc := h.orders()

		o, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
			VoucherCode: "GIAM10K",
		})
		require.NoError(t, err)
		claimed, used, _ := h.store.UserVouchers.CountForUser(h.ctx, u.ID, v.ID)
		assert.EqualValues(t, 1, claimed)
		assert.EqualValues(t, 1, used)

		_, err = svc.CancelMine(h.ctx, u.ID, o.ID, "")
		require.NoError(t, err)
		claimed, used, _ = h.store.UserVouchers.CountForUser(h.ctx, u.ID, v.ID)
		assert.EqualValues(t, 1, claimed)
		assert.Zero(t, used)
	})

	t.Run("only pending orders can be cancelled by the customer", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Minh", 0)
		p := h.product("ao", 200_000, 3)
		svc := h.orders()
		o, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)
		_, err = svc.UpdateStatus(h.ctx, o.ID, core.OrderProcessing, "")
		require.NoError(t, err)

		_, err = svc.CancelMine(h.ctx, u.ID, o.ID, "")
		assert.ErrorIs(t, err, core.ErrInvalidState)
	})

	t.Run("other customers cannot see the order", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Nam", 0)
		other := h.customer("Oanh", 0)
		p := h.product("ao", 200_000, 3)
		o, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		_, err = h.orders().GetMine(h.ctx, other.ID, o.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("illegal jumps are rejected", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Phúc", 0)
		p := h.product("ao", 200_000, 3)
		o, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		_, err = h.orders().UpdateStatus(h.ctx, o.ID, core.OrderDelivered, "")
		assert.ErrorIs(t, err, core.ErrInvalidState)
	})

	t.Run("delivery pays COD and earns points once", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Quân", 0)
		p := h.product("ao", 470_000, 3)

		o := h.deliveredOrder(u, p, 1)
		assert.Equal(t, core.PaymentPaid, o.PaymentStatus)
		assert.NotNil(t, o.DeliveredAt)
		assert.Len(t, o.History, 5)
		// 500_000 total at 1000 VND per point.
		assert.EqualValues(t, 500, h.balance(u.ID))

		txs, total, err := h.store.PointTxs.List(h.ctx, core.PointTxFilter{UserID: u.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, core.PointsEarned, txs[0].Type)
		require.NotNil(t, txs[0].ExpiryDate)
		assert.Equal(t, h.now.AddDate(1, 0, 0), *txs[0].ExpiryDate)
	})

	t.Run("shipped notification asks for confirmation", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Sơn", 0)
		p := h.product("ao", 100_000, 3)
		svc := h.orders()
		o, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)
		for _, to := range []core.OrderStatus{core.OrderProcessing, core.OrderPrepared, core.OrderShipped} {
			h.advance(time.Minute)
			_, err = svc.UpdateStatus(h.ctx, o.ID, to, "")
			require.NoError(t, err)
		}

		items, _, err := h.store.Notifications.List(h.ctx, u.ID, false, core.Page{Page: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, core.NotifyOrderDeliveryConfirmation, items[0].Type)
		assert.Equal(t, []core.NotificationAction{{Label: "Đã nhận hàng", Action: "confirm_received"}}, items[0].Actions)

		delivered, err := svc.ConfirmReceived(h.ctx, u.ID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, core.OrderDelivered, delivered.Status)
	})

	t.Run("auto confirm moves old pending orders", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Tâm", 0)
		p := h.product("ao", 100_000, 5)
		svc := h.orders()
		old, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)
		h.advance(2 * time.Minute)
		fresh, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		n, err := svc.AutoConfirmPending(h.ctx, time.Minute, 50)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, _ := svc.AdminGet(h.ctx, old.ID)
		assert.Equal(t, core.OrderProcessing, got.Status)
		got, _ = svc.AdminGet(h.ctx, fresh.ID)
		assert.Equal(t, core.OrderPending, got.Status)
	})

	t.Run("stats count by status", func(t *testing.T) {
		h := newHarness(t)
		u := h.customer("Uyên", 0)
		p := h.product("ao", 100_000, 5)
		h.deliveredOrder(u, p, 1)
		_, err := h.orders().Create(h.ctx, u.ID, core.CreateOrderInput{
			Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: "x", Phone: "1",
		})
		require.NoError(t, err)

		st, err := h.orders().Stats(h.ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, st.Total)
		assert.EqualValues(t, 1, st.ByStatus[core.OrderDelivered])
		assert.EqualValues(t, 1, st.ByStatus[core.OrderPending])
		assert.EqualValues(t, 130_000, st.DeliveredRevenue)
		assert.EqualValues(t, 1, st.Paid)
		assert.EqualValues(t, 1, st.Unpaid)
	})

	t.Run("admin list rejects unknown sort", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orders().AdminList(h.ctx, core.OrderFilter{Sort: "cheapest"})
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}
