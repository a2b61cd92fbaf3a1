package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/ids"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/store/memory"
)

// harness wires services over the in-memory store with a movable clock.
type harness struct {
	t     *testing.T
	ctx   context.Context
	now   time.Time
	store *memory.Store
	cache core.Cache
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		t:     t,
		ctx:   context.Background(),
		now:   time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
		store: memory.New(),
	}
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) opts() []core.Option {
	return []core.Option{core.WithClock(h.clock)}
}

func (h *harness) notifications() core.NotificationService {
	return core.NewNotificationService(h.store.Notifications, nil, logging.Discard(), h.opts()...)
}

func (h *harness) orders() core.OrderService {
	return core.NewOrderService(core.OrderDeps{
		Orders:       h.store.Orders,
		Products:     h.store.Products,
		Users:        h.store.Users,
		Carts:        h.store.Carts,
		Vouchers:     h.store.Vouchers,
		UserVouchers: h.store.UserVouchers,
		PointTxs:     h.store.PointTxs,
		PointsConfig: h.store.PointsConfig,
		Notifier:     h.notifications(),
		Cache:        h.cache,
		Log:          logging.Discard(),
		ShippingFee:  30_000,
	}, h.opts()...)
}

func (h *harness) points() core.PointsService {
	return core.NewPointsService(h.store.Users, h.store.PointTxs, h.store.PointsConfig, logging.Discard(), h.opts()...)
}

func (h *harness) vouchers() core.VoucherService {
	return core.NewVoucherService(h.store.Vouchers, h.store.UserVouchers, h.opts()...)
}

func (h *harness) reviews() core.ReviewService {
	return core.NewReviewService(core.ReviewDeps{
		Reviews:      h.store.Reviews,
		Orders:       h.store.Orders,
		Users:        h.store.Users,
		Vouchers:     h.store.Vouchers,
		UserVouchers: h.store.UserVouchers,
		PointTxs:     h.store.PointTxs,
		PointsConfig: h.store.PointsConfig,
		Notifier:     h.notifications(),
		Log:          logging.Discard(),
		RewardPoints: 100,
	}, h.opts()...)
}

func (h *harness) returns() core.ReturnService {
	return core.NewReturnService(core.ReturnDeps{
		Returns:      h.store.Returns,
		Orders:       h.store.Orders,
		Users:        h.store.Users,
		PointTxs:     h.store.PointTxs,
		PointsConfig: h.store.PointsConfig,
		Notifier:     h.notifications(),
		Log:          logging.Discard(),
	}, h.opts()...)
}

func (h *harness) customer(name string, balance int64) core.User {
	h.t.Helper()
	u := core.User{
		ID:        ids.New(),
		Name:      name,
		Email:     ids.New() + "@example.vn",
		Role:      core.RoleCustomer,
		IsActive:  true,
		Loyalty:   core.LoyaltyPoints{Balance: balance, Tier: core.TierBronze},
		CreatedAt: h.now,
		UpdatedAt: h.now,
	}
	require.NoError(h.t, h.store.Users.Create(h.ctx, u))
	return u
}

func (h *harness) product(name string, price int64, stock int, sizes ...core.SizeStock) core.Product {
	h.t.Helper()
	p := core.Product{
		ID:        ids.New(),
		Name:      name,
		Price:     price,
		Stock:     stock,
		Images:    []string{"https://cdn.example.vn/" + name + ".jpg"},
		IsActive:  true,
		IsVisible: true,
		Sizes:     sizes,
		CreatedAt: h.now,
		UpdatedAt: h.now,
	}
	if len(sizes) > 0 {
		p.Stock = 0
		for _, s := range sizes {
			p.Stock += s.Stock
		}
	}
	require.NoError(h.t, h.store.Products.Create(h.ctx, p))
	return p
}

func (h *harness) voucher(code string, typ core.DiscountType, value int64, reward core.RewardType) core.Voucher {
	h.t.Helper()
	v, err := h.vouchers().Create(h.ctx, core.VoucherInput{
		Code:           code,
		DiscountType:   typ,
		DiscountValue:  value,
		StartDate:      h.now.Add(-24 * time.Hour),
		EndDate:        h.now.Add(30 * 24 * time.Hour),
		MaxIssued:      10,
		MaxUsesPerUser: 1,
		RewardType:     reward,
	})
	require.NoError(h.t, err)
	return v
}

// deliveredOrder places an order for u and walks it to delivered.
func (h *harness) deliveredOrder(u core.User, p core.Product, qty int) core.Order {
	h.t.Helper()
	svc := h.orders()
	o, err := svc.Create(h.ctx, u.ID, core.CreateOrderInput{
		Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: qty}},
		ShippingAddress: "1 Võ Văn Ngân, Thủ Đức",
		Phone:           "0900000000",
	})
	require.NoError(h.t, err)
	for _, to := range []core.OrderStatus{core.OrderProcessing, core.OrderPrepared, core.OrderShipped, core.OrderDelivered} {
		o, err = svc.UpdateStatus(h.ctx, o.ID, to, "")
		require.NoError(h.t, err)
	}
	return o
}

func (h *harness) balance(userID string) int64 {
	h.t.Helper()
	u, err := h.store.Users.Get(h.ctx, userID)
	require.NoError(h.t, err)
	return u.Loyalty.Balance
}
