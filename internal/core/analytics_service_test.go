package core_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		cur, prev int64
		want      string
	}{
		{0, 0, "+0.0%"},
		{5, 0, "+100.0%"},
		{150, 100, "+50.0%"},
		{50, 100, "-50.0%"},
		{100, 100, "+0.0%"},
		{1, 3, "-66.7%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, core.GrowthRate(tt.cur, tt.prev), "%d vs %d", tt.cur, tt.prev)
	}
}

func TestParseGranularity(t *testing.T) {
	g, err := core.ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, core.Monthly, g)

	_, err = core.ParseGranularity("weekly")
	assert.ErrorIs(t, err, core.ErrValidation)
}

// analyticsFixture spreads deliveries over 2025 and 2026.
func analyticsFixture(t *testing.T) (*harness, core.AnalyticsService, core.Order, core.Order) {
	h := newHarness(t)
	current := h.now

	h.now = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	p := h.product("ao", 100_000, 20)
	old := h.customer("Cũ", 0)
	o2025 := h.deliveredOrder(old, p, 1)

	h.now = current
	fresh := h.customer("Mới", 0)
	o2026 := h.deliveredOrder(fresh, p, 2)
	_, err := h.orders().Create(h.ctx, fresh.ID, core.CreateOrderInput{
		Items:           []core.OrderItemInput{{ProductID: p.ID, Quantity: 1}},
		ShippingAddress: "x", Phone: "1",
	})
	require.NoError(t, err)

	svc := core.NewAnalyticsService(h.store.Orders, h.store.Users, h.store.Products, h.opts()...)
	return h, svc, o2025, o2026
}

func TestAnalyticsGeneral(t *testing.T) {
	h, svc, _, _ := analyticsFixture(t)

	got, err := svc.General(h.ctx, 0)
	require.NoError(t, err)

	want := core.GeneralStats{
		Year:           2026,
		TotalRevenue:   230_000,
		TotalOrders:    1,
		TotalCustomers: 1,
		TotalProducts:  1,
		Growth: core.Growth{
			Revenue:   "+76.9%",
			Orders:    "+0.0%",
			Customers: "+0.0%",
			Products:  "-100.0%",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("General() mismatch (-want +got):\n%s", diff)
	}

	_, err = svc.General(h.ctx, 1999)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestAnalyticsSeries(t *testing.T) {
	h, svc, _, _ := analyticsFixture(t)

	t.Run("monthly revenue", func(t *testing.T) {
		got, err := svc.Revenue(h.ctx, 2026, core.Monthly)
		require.NoError(t, err)

		want := make([]core.RevenuePoint, 12)
		for i := range want {
			want[i].Label = fmt.Sprintf("T%d", i+1)
		}
		want[2].Revenue = 230_000
		want[2].OrderCount = 1
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Revenue() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("yearly revenue ends at the year", func(t *testing.T) {
		got, err := svc.Revenue(h.ctx, 2026, core.Yearly)
		require.NoError(t, err)
		require.Len(t, got, 5)
		assert.Equal(t, "2022", got[0].Label)
		assert.EqualValues(t, 130_000, got[3].Revenue)
		assert.EqualValues(t, 230_000, got[4].Revenue)
	})

	t.Run("new customers", func(t *testing.T) {
		got, err := svc.NewCustomers(h.ctx, 2025, core.Monthly)
		require.NoError(t, err)
		require.Len(t, got, 12)
		assert.Equal(t, core.CountPoint{Label: "T6", Count: 1}, got[5])
	})
}

func TestAnalyticsOrdersAndProducts(t *testing.T) {
	h, svc, o2025, o2026 := analyticsFixture(t)

	res, err := svc.CompletedOrders(h.ctx, core.Page{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, o2026.ID, res.Items[0].ID)
	assert.Equal(t, o2025.ID, res.Items[1].ID)
	assert.Equal(t, "Mới", res.Items[0].CustomerName)
	assert.Equal(t, 2, res.Items[0].ItemCount)
	assert.Equal(t, core.OrderCode(o2026.ID), res.Items[0].OrderCode)

	top, err := svc.TopProducts(h.ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.EqualValues(t, 4, top[0].SoldCount)
	assert.EqualValues(t, 400_000, top[0].Revenue)
}

func TestOrderCode(t *testing.T) {
	assert.Equal(t, "#ORDABC123", core.OrderCode("0190ffabc123"))
	assert.Equal(t, "#ORDAB", core.OrderCode("ab"))
}
