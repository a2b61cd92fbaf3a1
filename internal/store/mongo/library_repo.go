package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uteshop/uteshop-api/internal/core"
)

type FavoriteRepoMongo struct {
	repo
}

func NewFavoriteRepo(db *mongodrv.Database, opTimeout time.Duration) *FavoriteRepoMongo {
	return &FavoriteRepoMongo{newRepo(db, ColFavorites, opTimeout)}
}

// Add upserts on (user, product); the first created_at wins.
func (r *FavoriteRepoMongo) Add(ctx context.Context, f core.Favorite) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": f.UserID, "product_id": f.ProductID},
		bson.M{"$setOnInsert": FavoriteDoc(f)},
		options.Update().SetUpsert(true),
	)
	if err != nil && !isDuplicateKey(err) {
		return fmt.Errorf("favorites.upsert: %w", err)
	}
	return nil
}

func (r *FavoriteRepoMongo) Remove(ctx context.Context, userID, productID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "product_id": productID}); err != nil {
		return fmt.Errorf("favorites.delete: %w", err)
	}
	return nil
}

func (r *FavoriteRepoMongo) List(ctx context.Context, userID string) ([]core.Favorite, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return findAll(ctx, r.coll, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		func(d FavoriteDoc) core.Favorite { return core.Favorite(d) })
}

func (r *FavoriteRepoMongo) Exists(ctx context.Context, userID, productID string) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return exists(ctx, r.coll, bson.M{"user_id": userID, "product_id": productID})
}

func (r *FavoriteRepoMongo) CountForProduct(ctx context.Context, productID string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"product_id": productID})
	if err != nil {
		return 0, fmt.Errorf("favorites.count: %w", err)
	}
	return n, nil
}

type ViewedRepoMongo struct {
	repo
}

func NewViewedRepo(db *mongodrv.Database, opTimeout time.Duration) *ViewedRepoMongo {
	return &ViewedRepoMongo{newRepo(db, ColViewed, opTimeout)}
}

func (r *ViewedRepoMongo) Record(ctx context.Context, userID, productID string, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "product_id": productID},
		bson.M{"$set": bson.M{"viewed_at": at}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("viewed.upsert: %w", err)
	}
	return nil
}

func (r *ViewedRepoMongo) List(ctx context.Context, userID string, limit int) ([]core.ViewedProduct, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "viewed_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll(ctx, r.coll, bson.M{"user_id": userID}, opts,
		func(d ViewedDoc) core.ViewedProduct { return core.ViewedProduct(d) })
}

func (r *ViewedRepoMongo) Remove(ctx context.Context, userID, productID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "product_id": productID}); err != nil {
		return fmt.Errorf("viewed.delete: %w", err)
	}
	return nil
}

func (r *ViewedRepoMongo) Clear(ctx context.Context, userID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("viewed.clear: %w", err)
	}
	return nil
}

type CartRepoMongo struct {
	repo
}

func NewCartRepo(db *mongodrv.Database, opTimeout time.Duration) *CartRepoMongo {
	return &CartRepoMongo{newRepo(db, ColCarts, opTimeout)}
}

func (r *CartRepoMongo) Get(ctx context.Context, userID string) (core.Cart, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var doc CartDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return core.Cart{UserID: userID, Items: []core.CartItem{}}, nil
	}
	if err != nil {
		return core.Cart{}, fmt.Errorf("carts.findOne: %w", err)
	}
	return fromCartDoc(doc), nil
}

func (r *CartRepoMongo) Save(ctx context.Context, c core.Cart) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.UserID}, toCartDoc(c), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("carts.replace: %w", err)
	}
	return nil
}

func (r *CartRepoMongo) RemoveItems(ctx context.Context, userID string, keys []core.CartKey) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	match := make(bson.A, 0, len(keys))
	for _, k := range keys {
		match = append(match, bson.M{"product_id": k.ProductID, "size": k.Size})
	}
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"items": bson.M{"$or": match}}},
	)
	if err != nil {
		return fmt.Errorf("carts.pull: %w", err)
	}
	return nil
}

func (r *CartRepoMongo) Clear(ctx context.Context, userID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("carts.delete: %w", err)
	}
	return nil
}
