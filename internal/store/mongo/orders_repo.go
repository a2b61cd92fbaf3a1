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
)

type OrderRepoMongo struct {
	repo
	counters *mongodrv.Collection
}

func NewOrderRepo(db *mongodrv.Database, opTimeout time.Duration) *OrderRepoMongo {
	return &OrderRepoMongo{
		repo:     newRepo(db, ColOrders, opTimeout),
		counters: db.Collection(ColCounters),
	}
}

func (r *OrderRepoMongo) Create(ctx context.Context, o core.Order) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toOrderDoc(o)); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: order %s exists", core.ErrConflict, o.Number)
		}
		return fmt.Errorf("orders.insert: %w", err)
	}
	return nil
}

func (r *OrderRepoMongo) Get(ctx context.Context, id string) (core.Order, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[OrderDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrOrderNotFound)
	return fromOrderDoc(doc), err
}

// Transition is a compare-and-set on status: it only applies while the
// stored status still equals from.
func (r *OrderRepoMongo) Transition(ctx context.Context, id string, from core.OrderStatus, t core.OrderTransition) (core.Order, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	set := bson.M{"status": string(t.To), "updated_at": t.At}
	if t.PaymentStatus != "" {
		set["payment_status"] = string(t.PaymentStatus)
	}
	switch t.To {
	case core.OrderDelivered:
		set["delivered_at"] = t.At
	case core.OrderCancelled:
		set["cancelled_at"] = t.At
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"history": StatusChangeDoc{Status: string(t.To), At: t.At, Note: t.Note}},
	}

	var doc OrderDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(from)},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return fromOrderDoc(doc), nil
	}
	if !errors.Is(err, mongodrv.ErrNoDocuments) {
		return core.Order{}, fmt.Errorf("orders.transition: %w", err)
	}
	found, err := exists(ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return core.Order{}, err
	}
	if !found {
		return core.Order{}, core.ErrOrderNotFound
	}
	return core.Order{}, core.ErrOrderStatusChanged
}

func (r *OrderRepoMongo) SetPaymentStatus(ctx context.Context, id string, ps core.PaymentStatus, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"payment_status": string(ps), "updated_at": at}})
	return mustMatch(res, err, "orders.setPaymentStatus", core.ErrOrderNotFound)
}

func orderFilter(f core.OrderFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.PaymentStatus != "" {
		filter["payment_status"] = string(f.PaymentStatus)
	}
	if f.PaymentMethod != "" {
		filter["payment_method"] = string(f.PaymentMethod)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		filter["number"] = bson.M{"$regex": regexp.QuoteMeta(strings.ToUpper(q))}
	}
	createdRange(filter, f.CreatedGTE, f.CreatedLT)
	return filter
}

func orderSort(s core.OrderSort) bson.D {
	switch s {
	case core.OrderSortOldest:
		return bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case core.OrderSortTotalDesc:
		return bson.D{{Key: "total_price", Value: -1}, {Key: "created_at", Value: -1}}
	case core.OrderSortTotalAsc:
		return bson.D{{Key: "total_price", Value: 1}, {Key: "created_at", Value: -1}}
	}
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}

func (r *OrderRepoMongo) List(ctx context.Context, f core.OrderFilter) ([]core.Order, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return findPage(ctx, r.coll, orderFilter(f), f.Page, orderSort(f.Sort), fromOrderDoc)
}

func (r *OrderRepoMongo) Count(ctx context.Context, f core.OrderFilter) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, orderFilter(f))
	if err != nil {
		return 0, fmt.Errorf("orders.count: %w", err)
	}
	return n, nil
}

func (r *OrderRepoMongo) Totals(ctx context.Context, f core.OrderFilter) (core.OrderTotals, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Count   int64 `bson:"count"`
		Revenue int64 `bson:"revenue"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: orderFilter(f)}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total_price"},
		}}},
	})
	if err != nil || len(rows) == 0 {
		return core.OrderTotals{}, err
	}
	return core.OrderTotals{Count: rows[0].Count, Revenue: rows[0].Revenue}, nil
}

func (r *OrderRepoMongo) CountByStatus(ctx context.Context, f core.OrderFilter) (map[core.OrderStatus]int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: orderFilter(f)}},
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	out := make(map[core.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[core.OrderStatus(row.Status)] = row.Count
	}
	return out, nil
}

func (r *OrderRepoMongo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]core.Order, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{"status": string(core.OrderPending), "created_at": bson.M{"$lt": before}}
	return findAll(ctx, r.coll, filter, opts, fromOrderDoc)
}

// NextNumber increments the per-year counter atomically.
func (r *OrderRepoMongo) NextNumber(ctx context.Context, year int) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var result struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": fmt.Sprintf("order_%d", year)},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&result)
	if err != nil {
		return 0, fmt.Errorf("orders.nextNumber: %w", err)
	}
	return result.Seq, nil
}
