// Package memory keeps every repository in process maps. It backs the
// service tests and `api --store=memory` for local runs without MongoDB.
package memory

import (
	"cmp"
	"slices"
	"strings"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/textnorm"
)

// Store bundles one instance of each repository.
type Store struct {
	Users         *UserStore
	OTPs          *OTPStore
	Brands        *BrandStore
	Categories    *CategoryStore
	Products      *ProductStore
	Favorites     *FavoriteStore
	Viewed        *ViewedStore
	Carts         *CartStore
	Vouchers      *VoucherStore
	UserVouchers  *UserVoucherStore
	PointsConfig  *PointsConfigStore
	PointTxs      *PointTxStore
	Orders        *OrderStore
	Reviews       *ReviewStore
	Returns       *ReturnStore
	Notifications *NotificationStore
}

func New() *Store {
	return &Store{
		Users:         NewUserStore(),
		OTPs:          NewOTPStore(),
		Brands:        NewBrandStore(),
		Categories:    NewCategoryStore(),
		Products:      NewProductStore(),
		Favorites:     NewFavoriteStore(),
		Viewed:        NewViewedStore(),
		Carts:         NewCartStore(),
		Vouchers:      NewVoucherStore(),
		UserVouchers:  NewUserVoucherStore(),
		PointsConfig:  NewPointsConfigStore(),
		PointTxs:      NewPointTxStore(),
		Orders:        NewOrderStore(),
		Reviews:       NewReviewStore(),
		Returns:       NewReturnStore(),
		Notifications: NewNotificationStore(),
	}
}

// paginate slices one page out of items, which must already be filtered and sorted.
func paginate[T any](items []T, p core.Page) []T {
	if p.Limit <= 0 {
		return items
	}
	from := min(p.Offset(), len(items))
	to := min(from+p.Limit, len(items))
	return slices.Clone(items[from:to])
}

// matches reports whether query folds into any of the fields.
func matches(query string, fields ...string) bool {
	q := textnorm.Fold(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(textnorm.Fold(f), q) {
			return true
		}
	}
	return false
}

// values returns the map values sorted by key, so results are stable.
func values[K cmp.Ordered, V any](m map[K]V) []V {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]V, 0, len(m))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

var (
	_ core.UserRepo         = (*UserStore)(nil)
	_ core.OTPRepo          = (*OTPStore)(nil)
	_ core.BrandRepo        = (*BrandStore)(nil)
	_ core.CategoryRepo     = (*CategoryStore)(nil)
	_ core.ProductRepo      = (*ProductStore)(nil)
	_ core.FavoriteRepo     = (*FavoriteStore)(nil)
	_ core.ViewedRepo       = (*ViewedStore)(nil)
	_ core.CartRepo         = (*CartStore)(nil)
	_ core.VoucherRepo      = (*VoucherStore)(nil)
	_ core.UserVoucherRepo  = (*UserVoucherStore)(nil)
	_ core.PointsConfigRepo = (*PointsConfigStore)(nil)
	_ core.PointTxRepo      = (*PointTxStore)(nil)
	_ core.OrderRepo        = (*OrderStore)(nil)
	_ core.ReviewRepo       = (*ReviewStore)(nil)
	_ core.ReturnRepo       = (*ReturnStore)(nil)
	_ core.NotificationRepo = (*NotificationStore)(nil)
)
