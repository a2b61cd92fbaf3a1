package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestProductFilter(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := productFilter(core.ProductFilter{
		Search:      "  Áo Sơ Mi ",
		CategoryID:  "c1",
		MinPrice:    100,
		IDs:         []string{"a", "b"},
		ExcludeID:   "b",
		VisibleOnly: true,
		CreatedGTE:  &from,
	})

	assert.Equal(t, "c1", f["category_id"])
	assert.Equal(t, bson.M{"$gte": int64(100)}, f["price"])
	assert.Equal(t, bson.M{"$in": []string{"a", "b"}, "$ne": "b"}, f["_id"])
	assert.Equal(t, true, f["is_active"])
	assert.Equal(t, true, f["is_visible"])
	assert.Equal(t, bson.M{"$gte": from}, f["created_at"])
	assert.Equal(t, bson.M{"$regex": "ao so mi"}, f["search_text"])
	assert.NotContains(t, f, "brand_id")
}

func TestSearchFilterEscapesRegex(t *testing.T) {
	f := bson.M{}
	searchFilter(f, "a+b (x)")
	assert.Equal(t, bson.M{"$regex": `a\+b \(x\)`}, f["search_text"])

	empty := bson.M{}
	searchFilter(empty, "   ")
	assert.Empty(t, empty)
}

func TestProductSort(t *testing.T) {
	tail := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	assert.Equal(t, tail, productSort(core.SortNewest))
	assert.Equal(t, append(bson.D{{Key: "price", Value: 1}}, tail...), productSort(core.SortPriceAsc))
	assert.Equal(t, append(bson.D{{Key: "sold_count", Value: -1}}, tail...), productSort(core.SortBestSelling))
}

func TestVoucherStatusFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	active := statusFilter(core.VoucherActive, now)
	assert.Equal(t, false, active["disabled"])
	assert.Equal(t, true, active["is_active"])
	assert.Equal(t, bson.M{"$lte": now}, active["start_date"])
	assert.Equal(t, bson.M{"$gte": now}, active["end_date"])

	assert.Equal(t, bson.M{"disabled": false, "end_date": bson.M{"$lt": now}}, statusFilter(core.VoucherExpired, now))
	assert.Equal(t, bson.M{"disabled": false, "start_date": bson.M{"$gt": now}}, statusFilter(core.VoucherUpcoming, now))

	inactive := statusFilter(core.VoucherInactive, now)
	assert.Len(t, inactive["$or"], 2)
	assert.Empty(t, statusFilter("", now))
}

func TestOrderFilter(t *testing.T) {
	f := orderFilter(core.OrderFilter{UserID: "u1", Status: core.OrderPending, Search: " ord-2026 "})
	assert.Equal(t, "u1", f["user_id"])
	assert.Equal(t, "pending", f["status"])
	assert.Equal(t, bson.M{"$regex": "ORD-2026"}, f["number"])
}

func TestDocMapping(t *testing.T) {
	t.Run("brand name key is case-insensitive", func(t *testing.T) {
		d := toBrandDoc(core.Brand{ID: "b1", Name: " Việt Tiến "})
		assert.Equal(t, "việt tiến", d.NameKey)
		assert.Contains(t, d.SearchText, "viet tien")
	})

	t.Run("rejected returns release the order", func(t *testing.T) {
		open := toReturnDoc(core.ReturnRequest{ID: "r1", OrderID: "o1", Status: core.ReturnPending})
		assert.Equal(t, "o1", open.OpenOrderID)
		closed := toReturnDoc(core.ReturnRequest{ID: "r2", OrderID: "o1", Status: core.ReturnRejected})
		assert.Empty(t, closed.OpenOrderID)
	})

	t.Run("order round trip", func(t *testing.T) {
		at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
		o := core.Order{
			ID:     "o1",
			Number: "ORD-2026-000001",
			Items: []core.OrderItem{{
				ProductID: "p1", Name: "Áo", Size: "M", Quantity: 2,
				OriginalPrice: 200_000, DiscountPercentage: 10, DiscountedPrice: 180_000, LineTotal: 360_000,
			}},
			Status:  core.OrderPending,
			History: []core.StatusChange{{Status: core.OrderPending, At: at}},
		}
		assert.Equal(t, o, fromOrderDoc(toOrderDoc(o)))
	})

	t.Run("unsized products keep nil sizes", func(t *testing.T) {
		p := fromProductDoc(toProductDoc(core.Product{ID: "p1", Name: "Mũ"}))
		assert.False(t, p.HasSizes())
		assert.Empty(t, p.Images)
	})
}
