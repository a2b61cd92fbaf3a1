package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/textnorm"
)

// repo carries what every collection wrapper needs.
type repo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func newRepo(db *mongodrv.Database, name string, opTimeout time.Duration) repo {
	return repo{coll: db.Collection(name), opTimeout: opTimeout}
}

func (r repo) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opTimeout)
}

// isDuplicateKey reports a unique index violation (E11000).
func isDuplicateKey(err error) bool {
	var we mongodrv.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongodrv.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}

// searchFilter matches the folded query anywhere in search_text.
func searchFilter(filter bson.M, query string) {
	q := textnorm.Fold(strings.TrimSpace(query))
	if q == "" {
		return
	}
	filter["search_text"] = bson.M{"$regex": regexp.QuoteMeta(q)}
}

// createdRange adds a half-open [gte, lt) bound on created_at.
func createdRange(filter bson.M, gte, lt *time.Time) {
	if gte == nil && lt == nil {
		return
	}
	rng := bson.M{}
	if gte != nil {
		rng["$gte"] = *gte
	}
	if lt != nil {
		rng["$lt"] = *lt
	}
	filter["created_at"] = rng
}

// pageOpts sorts and slices one page; a zero limit returns everything.
func pageOpts(p core.Page, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if p.Limit > 0 {
		opts.SetSkip(int64(p.Offset())).SetLimit(int64(p.Limit))
	}
	return opts
}

// findAll runs a find and maps every decoded document.
func findAll[D, T any](ctx context.Context, coll *mongodrv.Collection, filter any, opts *options.FindOptions, from func(D) T) ([]T, error) {
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s.find: %w", coll.Name(), err)
	}
	defer cur.Close(ctx)

	out := []T{}
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s.decode: %w", coll.Name(), err)
		}
		out = append(out, from(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s.cursor: %w", coll.Name(), err)
	}
	return out, nil
}

// findPage counts matches and loads one page of them.
func findPage[D, T any](ctx context.Context, coll *mongodrv.Collection, filter bson.M, p core.Page, sort bson.D, from func(D) T) ([]T, int64, error) {
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%s.count: %w", coll.Name(), err)
	}
	items, err := findAll(ctx, coll, filter, pageOpts(p, sort), from)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// findOne decodes one document, mapping a miss to notFound.
func findOne[D any](ctx context.Context, coll *mongodrv.Collection, filter any, notFound error, opts ...*options.FindOneOptions) (D, error) {
	var doc D
	err := coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return doc, notFound
		}
		return doc, fmt.Errorf("%s.findOne: %w", coll.Name(), err)
	}
	return doc, nil
}

// aggregate decodes every result of a pipeline into D.
func aggregate[D any](ctx context.Context, coll *mongodrv.Collection, pipeline mongodrv.Pipeline) ([]D, error) {
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("%s.aggregate: %w", coll.Name(), err)
	}
	var out []D
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s.aggregate decode: %w", coll.Name(), err)
	}
	return out, nil
}

// exists reports whether any document matches filter.
func exists(ctx context.Context, coll *mongodrv.Collection, filter any) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%s.count: %w", coll.Name(), err)
	}
	return n > 0, nil
}

// mustMatch turns an update that matched nothing into notFound.
func mustMatch(res *mongodrv.UpdateResult, err error, op string, notFound error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.MatchedCount == 0 {
		return notFound
	}
	return nil
}

func deleteMany(ctx context.Context, coll *mongodrv.Collection, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, fmt.Errorf("%s.deleteMany: %w", coll.Name(), err)
	}
	return res.DeletedCount, nil
}

func deleteByID(ctx context.Context, coll *mongodrv.Collection, id string, notFound error) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("%s.delete: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return notFound
	}
	return nil
}
