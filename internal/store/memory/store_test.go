package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/uteshop/uteshop-api/internal/core"
)

type StoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
	now   time.Time
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestReserveStock() {
	p := core.Product{
		ID: "p1", Name: "Áo thun", Price: 200_000, Stock: 5, IsActive: true, IsVisible: true,
		Sizes: []core.SizeStock{{Size: "M", Stock: 3}, {Size: "L", Stock: 2}},
	}
	s.Require().NoError(s.store.Products.Create(s.ctx, p))

	s.Run("takes from the size and counts as sold", func() {
		s.Require().NoError(s.store.Products.ReserveStock(s.ctx, "p1", "M", 2))
		got, err := s.store.Products.Get(s.ctx, "p1")
		s.Require().NoError(err)
		s.Equal(1, got.Sizes[0].Stock)
		s.Equal(3, got.Stock)
		s.EqualValues(2, got.SoldCount)
	})

	s.Run("refuses more than is left", func() {
		err := s.store.Products.ReserveStock(s.ctx, "p1", "L", 3)
		s.ErrorIs(err, core.ErrInsufficientStock)
	})

	s.Run("release puts stock back", func() {
		s.Require().NoError(s.store.Products.ReleaseStock(s.ctx, "p1", "M", 2))
		got, _ := s.store.Products.Get(s.ctx, "p1")
		s.Equal(3, got.Sizes[0].Stock)
		s.Zero(got.SoldCount)
	})

	s.Run("callers cannot mutate stored sizes", func() {
		got, _ := s.store.Products.Get(s.ctx, "p1")
		got.Sizes[0].Stock = 100
		again, _ := s.store.Products.Get(s.ctx, "p1")
		s.Equal(3, again.Sizes[0].Stock)
	})
}

func (s *StoreSuite) TestProductSearchFoldsDiacritics() {
	s.Require().NoError(s.store.Products.Create(s.ctx, core.Product{ID: "a", Name: "Giày đá bóng", CreatedAt: s.now}))
	s.Require().NoError(s.store.Products.Create(s.ctx, core.Product{ID: "b", Name: "Áo khoác", CreatedAt: s.now}))

	items, total, err := s.store.Products.List(s.ctx, core.ProductFilter{Search: "giay da"})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal("a", items[0].ID)
}

func (s *StoreSuite) TestVoucherCounters() {
	v := core.Voucher{ID: "v1", Code: "SALE10", MaxIssued: 1}
	s.Require().NoError(s.store.Vouchers.Create(s.ctx, v))
	s.ErrorIs(s.store.Vouchers.Create(s.ctx, core.Voucher{ID: "v2", Code: "SALE10"}), core.ErrVoucherCodeTaken)

	s.Require().NoError(s.store.Vouchers.IncrementUses(s.ctx, "v1"))
	s.ErrorIs(s.store.Vouchers.IncrementUses(s.ctx, "v1"), core.ErrVoucherExhausted)
	s.Require().NoError(s.store.Vouchers.DecrementUses(s.ctx, "v1"))
	s.Require().NoError(s.store.Vouchers.DecrementUses(s.ctx, "v1"))

	got, err := s.store.Vouchers.Get(s.ctx, "v1")
	s.Require().NoError(err)
	s.Zero(got.UsesCount)

	s.Require().NoError(s.store.Vouchers.TryClaim(s.ctx, "v1"))
	s.ErrorIs(s.store.Vouchers.TryClaim(s.ctx, "v1"), core.ErrVoucherExhausted)
}

func (s *StoreSuite) TestOrderTransitionIsConditional() {
	o := core.Order{ID: "o1", Number: "ORD-2026-000001", Status: core.OrderPending, CreatedAt: s.now}
	s.Require().NoError(s.store.Orders.Create(s.ctx, o))

	updated, err := s.store.Orders.Transition(s.ctx, "o1", core.OrderPending, core.OrderTransition{
		To: core.OrderCancelled, At: s.now, PaymentStatus: core.PaymentRefunded,
	})
	s.Require().NoError(err)
	s.Equal(core.OrderCancelled, updated.Status)
	s.Equal(core.PaymentRefunded, updated.PaymentStatus)
	s.NotNil(updated.CancelledAt)
	s.Len(updated.History, 1)

	_, err = s.store.Orders.Transition(s.ctx, "o1", core.OrderPending, core.OrderTransition{To: core.OrderProcessing, At: s.now})
	s.ErrorIs(err, core.ErrOrderStatusChanged)
}

func (s *StoreSuite) TestOrderNumbersAreYearScoped() {
	a, _ := s.store.Orders.NextNumber(s.ctx, 2026)
	b, _ := s.store.Orders.NextNumber(s.ctx, 2026)
	c, _ := s.store.Orders.NextNumber(s.ctx, 2027)
	s.Equal([]int64{1, 2, 1}, []int64{a, b, c})
}

func (s *StoreSuite) TestAdjustPointsNeverGoesNegative() {
	s.Require().NoError(s.store.Users.Create(s.ctx, core.User{ID: "u1", Email: "a@b.vn", Role: core.RoleCustomer}))
	bal, err := s.store.Users.AdjustPoints(s.ctx, "u1", 50)
	s.Require().NoError(err)
	s.EqualValues(50, bal)

	_, err = s.store.Users.AdjustPoints(s.ctx, "u1", -51)
	s.ErrorIs(err, core.ErrInsufficientPoints)
}

func (s *StoreSuite) TestReviewRewardClaimedOnce() {
	s.Require().NoError(s.store.Reviews.Create(s.ctx, core.Review{ID: "r1", OrderID: "o1", ProductID: "p1"}))
	s.ErrorIs(s.store.Reviews.Create(s.ctx, core.Review{ID: "r2", OrderID: "o1", ProductID: "p1"}), core.ErrReviewExists)

	s.Require().NoError(s.store.Reviews.MarkRewardClaimed(s.ctx, "r1", core.RewardPoints, s.now))
	s.ErrorIs(s.store.Reviews.MarkRewardClaimed(s.ctx, "r1", core.RewardVoucher, s.now), core.ErrRewardClaimed)
}

func (s *StoreSuite) TestReturnDecideOnlyPending() {
	s.Require().NoError(s.store.Returns.Create(s.ctx, core.ReturnRequest{ID: "x1", OrderID: "o1", Status: core.ReturnPending}))
	_, err := s.store.Returns.Decide(s.ctx, "x1", core.ReturnDecision{Status: core.ReturnRejected, At: s.now})
	s.Require().NoError(err)
	_, err = s.store.Returns.Decide(s.ctx, "x1", core.ReturnDecision{Status: core.ReturnApproved, At: s.now})
	s.ErrorIs(err, core.ErrReturnNotPending)

	open, err := s.store.Returns.ExistsOpenForOrder(s.ctx, "o1")
	s.Require().NoError(err)
	s.False(open)
}
