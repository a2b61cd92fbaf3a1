// Package mongo implements the core repositories on MongoDB.
package mongo

import (
	"time"

	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/uteshop/uteshop-api/internal/core"
)

// Store bundles one repository per collection, sharing a database handle.
type Store struct {
	Users         *UserRepoMongo
	OTPs          *OTPRepoMongo
	Brands        *BrandRepoMongo
	Categories    *CategoryRepoMongo
	Products      *ProductRepoMongo
	Favorites     *FavoriteRepoMongo
	Viewed        *ViewedRepoMongo
	Carts         *CartRepoMongo
	Vouchers      *VoucherRepoMongo
	UserVouchers  *UserVoucherRepoMongo
	PointsConfig  *PointsConfigRepoMongo
	PointTxs      *PointTxRepoMongo
	Orders        *OrderRepoMongo
	Reviews       *ReviewRepoMongo
	Returns       *ReturnRepoMongo
	Notifications *NotificationRepoMongo
}

func NewStore(db *mongodrv.Database, opTimeout time.Duration) *Store {
	return &Store{
		Users:         NewUserRepo(db, opTimeout),
		OTPs:          NewOTPRepo(db, opTimeout),
		Brands:        NewBrandRepo(db, opTimeout),
		Categories:    NewCategoryRepo(db, opTimeout),
		Products:      NewProductRepo(db, opTimeout),
		Favorites:     NewFavoriteRepo(db, opTimeout),
		Viewed:        NewViewedRepo(db, opTimeout),
		Carts:         NewCartRepo(db, opTimeout),
		Vouchers:      NewVoucherRepo(db, opTimeout),
		UserVouchers:  NewUserVoucherRepo(db, opTimeout),
		PointsConfig:  NewPointsConfigRepo(db, opTimeout),
		PointTxs:      NewPointTxRepo(db, opTimeout),
		Orders:        NewOrderRepo(db, opTimeout),
		Reviews:       NewReviewRepo(db, opTimeout),
		Returns:       NewReturnRepo(db, opTimeout),
		Notifications: NewNotificationRepo(db, opTimeout),
	}
}

var (
	_ core.UserRepo         = (*UserRepoMongo)(nil)
	_ core.OTPRepo          = (*OTPRepoMongo)(nil)
	_ core.BrandRepo        = (*BrandRepoMongo)(nil)
	_ core.CategoryRepo     = (*CategoryRepoMongo)(nil)
	_ core.ProductRepo      = (*ProductRepoMongo)(nil)
	_ core.FavoriteRepo     = (*FavoriteRepoMongo)(nil)
	_ core.ViewedRepo       = (*ViewedRepoMongo)(nil)
	_ core.CartRepo         = (*CartRepoMongo)(nil)
	_ core.VoucherRepo      = (*VoucherRepoMongo)(nil)
	_ core.UserVoucherRepo  = (*UserVoucherRepoMongo)(nil)
	_ core.PointsConfigRepo = (*PointsConfigRepoMongo)(nil)
	_ core.PointTxRepo      = (*PointTxRepoMongo)(nil)
	_ core.OrderRepo        = (*OrderRepoMongo)(nil)
	_ core.ReviewRepo       = (*ReviewRepoMongo)(nil)
	_ core.ReturnRepo       = (*ReturnRepoMongo)(nil)
	_ core.NotificationRepo = (*NotificationRepoMongo)(nil)
)
