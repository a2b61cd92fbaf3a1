package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/uteshop/uteshop-api/internal/core"
)

// namedRepo stores brands and categories: documents with a unique,
// case-insensitive name, listed alphabetically.
type namedRepo[D, T any] struct {
	repo
	to       func(T) D
	from     func(D) T
	id       func(T) string
	exists   error
	notFound error
}

func (r *namedRepo[D, T]) Create(ctx context.Context, v T) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, r.to(v)); err != nil {
		if isDuplicateKey(err) {
			return r.exists
		}
		return fmt.Errorf("%s.insert: %w", r.coll.Name(), err)
	}
	return nil
}

func (r *namedRepo[D, T]) Get(ctx context.Context, id string) (T, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[D](ctx, r.coll, bson.M{"_id": id}, r.notFound)
	return r.from(doc), err
}

func (r *namedRepo[D, T]) Update(ctx context.Context, v T) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": r.id(v)}, r.to(v))
	if isDuplicateKey(err) {
		return r.exists
	}
	return mustMatch(res, err, r.coll.Name()+".replace", r.notFound)
}

func (r *namedRepo[D, T]) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return deleteByID(ctx, r.coll, id, r.notFound)
}

func (r *namedRepo[D, T]) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return deleteMany(ctx, r.coll, ids)
}

func (r *namedRepo[D, T]) List(ctx context.Context, search string, p core.Page) ([]T, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{}
	searchFilter(filter, search)
	return findPage(ctx, r.coll, filter, p, bson.D{{Key: "name_key", Value: 1}}, r.from)
}

func (r *namedRepo[D, T]) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("%s.count: %w", r.coll.Name(), err)
	}
	return n, nil
}

type BrandRepoMongo struct {
	namedRepo[BrandDoc, core.Brand]
}

func NewBrandRepo(db *mongodrv.Database, opTimeout time.Duration) *BrandRepoMongo {
	return &BrandRepoMongo{namedRepo[BrandDoc, core.Brand]{
		repo:     newRepo(db, ColBrands, opTimeout),
		to:       toBrandDoc,
		from:     fromBrandDoc,
		id:       func(b core.Brand) string { return b.ID },
		exists:   core.ErrBrandExists,
		notFound: core.ErrBrandNotFound,
	}}
}

type CategoryRepoMongo struct {
	namedRepo[CategoryDoc, core.Category]
}

func NewCategoryRepo(db *mongodrv.Database, opTimeout time.Duration) *CategoryRepoMongo {
	return &CategoryRepoMongo{namedRepo[CategoryDoc, core.Category]{
		repo:     newRepo(db, ColCategories, opTimeout),
		to:       toCategoryDoc,
		from:     fromCategoryDoc,
		id:       func(c core.Category) string { return c.ID },
		exists:   core.ErrCategoryExists,
		notFound: core.ErrCategoryNotFound,
	}}
}
