package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the repositories rely on. It is
// idempotent and runs at startup and from `uteshopctl ensure-indexes`.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		ColUsers: {
			newIndex("email", 1, "users_email_unique", true),
			compound("users_role_created", bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}, false),
			compound("users_role_balance", bson.D{{Key: "role", Value: 1}, {Key: "loyalty.balance", Value: -1}}, false),
		},
		ColOTPs: {
			compound("otps_email_purpose", bson.D{{Key: "email", Value: 1}, {Key: "purpose", Value: 1}, {Key: "created_at", Value: -1}}, false),
			newTTLIndex("expires_at", "otps_expiry_ttl", 0),
		},
		ColBrands: {
			newIndex("name_key", 1, "brands_name_unique", true),
		},
		ColCategories: {
			newIndex("name_key", 1, "categories_name_unique", true),
		},
		ColProducts: {
			newIndex("category_id", 1, "products_category", false),
			newIndex("brand_id", 1, "products_brand", false),
			newIndex("created_at", -1, "products_created_desc", false),
			newIndex("sold_count", -1, "products_sold_desc", false),
			newIndex("view_count", -1, "products_views_desc", false),
			compound("products_visible", bson.D{{Key: "is_active", Value: 1}, {Key: "is_visible", Value: 1}}, false),
		},
		ColFavorites: {
			compound("favorites_user_product_unique", bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}}, true),
			newIndex("product_id", 1, "favorites_product", false),
		},
		ColViewed: {
			compound("viewed_user_product_unique", bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}}, true),
			compound("viewed_user_recent", bson.D{{Key: "user_id", Value: 1}, {Key: "viewed_at", Value: -1}}, false),
		},
		ColVouchers: {
			newIndex("code", 1, "vouchers_code_unique", true),
			compound("vouchers_window", bson.D{{Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}, false),
		},
		ColUserVouchers: {
			compound("user_vouchers_user_voucher", bson.D{{Key: "user_id", Value: 1}, {Key: "voucher_id", Value: 1}}, false),
			compound("user_vouchers_user_order", bson.D{{Key: "user_id", Value: 1}, {Key: "order_id", Value: 1}}, false),
		},
		ColPointTxs: {
			compound("point_txs_user_created", bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, false),
			compound("point_txs_order_type", bson.D{{Key: "order_id", Value: 1}, {Key: "type", Value: 1}}, false),
		},
		ColOrders: {
			newIndex("number", 1, "orders_number_unique", true),
			compound("orders_user_created", bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, false),
			compound("orders_status_created", bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}, false),
		},
		ColReviews: {
			compound("reviews_order_product_unique", bson.D{{Key: "order_id", Value: 1}, {Key: "product_id", Value: 1}}, true),
			compound("reviews_product_created", bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: -1}}, false),
		},
		ColReturns: {
			{
				Keys:    bson.D{{Key: "open_order_id", Value: 1}},
				Options: options.Index().SetName("returns_open_order_unique").SetUnique(true).SetSparse(true),
			},
			compound("returns_user_created", bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, false),
		},
		ColNotifications: {
			compound("notifications_recipient_created", bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}}, false),
			compound("notifications_recipient_read", bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}}, false),
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", name, err)
		}
	}
	return nil
}

func newIndex(field string, order int32, name string, unique bool) mongo.IndexModel {
	return compound(name, bson.D{{Key: field, Value: order}}, unique)
}

func compound(name string, keys bson.D, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts = opts.SetUnique(true)
	}
	return mongo.IndexModel{Keys: keys, Options: opts}
}

func newTTLIndex(field, name string, expireAfterSeconds int32) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetName(name).SetExpireAfterSeconds(expireAfterSeconds),
	}
}
