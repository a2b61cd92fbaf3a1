package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ProductRepoMongo struct {
	repo
}

func NewProductRepo(db *mongodrv.Database, opTimeout time.Duration) *ProductRepoMongo {
	return &ProductRepoMongo{newRepo(db, ColProducts, opTimeout)}
}

func (r *ProductRepoMongo) Create(ctx context.Context, p core.Product) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toProductDoc(p)); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: product %s exists", core.ErrConflict, p.ID)
		}
		return fmt.Errorf("products.insert: %w", err)
	}
	return nil
}

func (r *ProductRepoMongo) Get(ctx context.Context, id string) (core.Product, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[ProductDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrProductNotFound)
	return fromProductDoc(doc), err
}

// GetMany skips ids that no longer exist.
func (r *ProductRepoMongo) GetMany(ctx context.Context, ids []string) ([]core.Product, error) {
	if len(ids) == 0 {
		return []core.Product{}, nil
	}
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return findAll(ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}}, options.Find(), fromProductDoc)
}

func (r *ProductRepoMongo) Update(ctx context.Context, p core.Product) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, toProductDoc(p))
	return mustMatch(res, err, "products.replace", core.ErrProductNotFound)
}

func (r *ProductRepoMongo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return deleteByID(ctx, r.coll, id, core.ErrProductNotFound)
}

func (r *ProductRepoMongo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return deleteMany(ctx, r.coll, ids)
}

func productFilter(f core.ProductFilter) bson.M {
	filter := bson.M{}
	if f.CategoryID != "" {
		filter["category_id"] = f.CategoryID
	}
	if f.BrandID != "" {
		filter["brand_id"] = f.BrandID
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		price := bson.M{}
		if f.MinPrice > 0 {
			price["$gte"] = f.MinPrice
		}
		if f.MaxPrice > 0 {
			price["$lte"] = f.MaxPrice
		}
		filter["price"] = price
	}
	ids := bson.M{}
	if len(f.IDs) > 0 {
		ids["$in"] = f.IDs
	}
	if f.ExcludeID != "" {
		ids["$ne"] = f.ExcludeID
	}
	if len(ids) > 0 {
		filter["_id"] = ids
	}
	if f.VisibleOnly {
		filter["is_active"] = true
		filter["is_visible"] = true
	}
	createdRange(filter, f.CreatedGTE, f.CreatedLT)
	searchFilter(filter, f.Search)
	return filter
}

// productSort always ends on created_at and _id so pages are stable.
func productSort(s core.ProductSort) bson.D {
	tail := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	var head bson.D
	switch s {
	case core.SortBestSelling:
		head = bson.D{{Key: "sold_count", Value: -1}}
	case core.SortMostViewed:
		head = bson.D{{Key: "view_count", Value: -1}}
	case core.SortTopDiscount:
		head = bson.D{{Key: "discount_percentage", Value: -1}}
	case core.SortPriceAsc:
		head = bson.D{{Key: "price", Value: 1}}
	case core.SortPriceDesc:
		head = bson.D{{Key: "price", Value: -1}}
	}
	return append(head, tail...)
}

func (r *ProductRepoMongo) List(ctx context.Context, f core.ProductFilter) ([]core.Product, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return findPage(ctx, r.coll, productFilter(f), f.Page, productSort(f.Sort), fromProductDoc)
}

func (r *ProductRepoMongo) Count(ctx context.Context, f core.ProductFilter) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, productFilter(f))
	if err != nil {
		return 0, fmt.Errorf("products.count: %w", err)
	}
	return n, nil
}

func (r *ProductRepoMongo) IncrementViews(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"view_count": 1}})
	return mustMatch(res, err, "products.incrementViews", core.ErrProductNotFound)
}

// ReserveStock decrements stock only while enough is left, so concurrent
// orders cannot oversell. Sized products move the size and the total together.
func (r *ProductRepoMongo) ReserveStock(ctx context.Context, id, size string, qty int) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	inc := bson.M{"stock": -qty, "sold_count": qty}
	if size == "" {
		filter["stock"] = bson.M{"$gte": qty}
		filter["sizes.0"] = bson.M{"$exists": false}
	} else {
		filter["sizes"] = bson.M{"$elemMatch": bson.M{"size": size, "stock": bson.M{"$gte": qty}}}
		inc["sizes.$.stock"] = -qty
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("products.reserveStock: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return r.stockMiss(ctx, id, size)
}

// stockMiss explains why a conditional stock update matched nothing.
func (r *ProductRepoMongo) stockMiss(ctx context.Context, id, size string) error {
	doc, err := findOne[ProductDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrProductNotFound)
	if err != nil {
		return err
	}
	p := fromProductDoc(doc)
	if _, err := p.Available(size); err != nil {
		return err
	}
	if size != "" && !p.HasSizes() {
		return fmt.Errorf("%w: %s has no sizes", core.ErrValidation, p.Name)
	}
	return core.ErrInsufficientStock
}

func (r *ProductRepoMongo) ReleaseStock(ctx context.Context, id, size string, qty int) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	inc := bson.M{"stock": qty, "sold_count": -qty}
	if size != "" {
		filter["sizes.size"] = size
		inc["sizes.$.stock"] = qty
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$inc": inc})
	if err != nil {
		return fmt.Errorf("products.releaseStock: %w", err)
	}
	if res.MatchedCount == 0 {
		return r.stockMiss(ctx, id, size)
	}
	if _, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "sold_count": bson.M{"$lt": 0}},
		bson.M{"$set": bson.M{"sold_count": 0}},
	); err != nil {
		return fmt.Errorf("products.clampSold: %w", err)
	}
	return nil
}

func (r *ProductRepoMongo) set(ctx context.Context, id string, op string, update bson.M) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return mustMatch(res, err, "products."+op, core.ErrProductNotFound)
}

func (r *ProductRepoMongo) SetDiscount(ctx context.Context, id string, pct int, at time.Time) error {
	return r.set(ctx, id, "setDiscount", bson.M{"$set": bson.M{"discount_percentage": pct, "updated_at": at}})
}

func (r *ProductRepoMongo) SetVisibility(ctx context.Context, id string, visible bool, at time.Time) error {
	return r.set(ctx, id, "setVisibility", bson.M{"$set": bson.M{"is_visible": visible, "updated_at": at}})
}

func (r *ProductRepoMongo) AddImage(ctx context.Context, id, url string, at time.Time) error {
	return r.set(ctx, id, "addImage", bson.M{
		"$push": bson.M{"images": url},
		"$set":  bson.M{"updated_at": at},
	})
}
