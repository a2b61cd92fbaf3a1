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

type ReturnRepoMongo struct {
	repo
}

func NewReturnRepo(db *mongodrv.Database, opTimeout time.Duration) *ReturnRepoMongo {
	return &ReturnRepoMongo{newRepo(db, ColReturns, opTimeout)}
}

func (r *ReturnRepoMongo) Create(ctx context.Context, rr core.ReturnRequest) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toReturnDoc(rr)); err != nil {
		if isDuplicateKey(err) {
			return core.ErrReturnExists
		}
		return fmt.Errorf("return_requests.insert: %w", err)
	}
	return nil
}

func (r *ReturnRepoMongo) Get(ctx context.Context, id string) (core.ReturnRequest, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[ReturnDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrReturnNotFound)
	return fromReturnDoc(doc), err
}

func (r *ReturnRepoMongo) ExistsOpenForOrder(ctx context.Context, orderID string) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return exists(ctx, r.coll, bson.M{"open_order_id": orderID})
}

func (r *ReturnRepoMongo) List(ctx context.Context, f core.ReturnFilter) ([]core.ReturnRequest, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	return findPage(ctx, r.coll, filter, f.Page, bson.D{{Key: "created_at", Value: -1}}, fromReturnDoc)
}

// Decide only touches pending requests. A rejection frees the order for a new request.
func (r *ReturnRepoMongo) Decide(ctx context.Context, id string, d core.ReturnDecision) (core.ReturnRequest, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":         string(d.Status),
		"admin_note":     d.AdminNote,
		"points_awarded": d.PointsAwarded,
		"processed_by":   d.ProcessedBy,
		"processed_at":   d.At,
		"updated_at":     d.At,
	}}
	if d.Status == core.ReturnRejected {
		update["$unset"] = bson.M{"open_order_id": ""}
	}

	var doc ReturnDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(core.ReturnPending)},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return fromReturnDoc(doc), nil
	}
	if !errors.Is(err, mongodrv.ErrNoDocuments) {
		return core.ReturnRequest{}, fmt.Errorf("return_requests.decide: %w", err)
	}
	found, err := exists(ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return core.ReturnRequest{}, err
	}
	if !found {
		return core.ReturnRequest{}, core.ErrReturnNotFound
	}
	return core.ReturnRequest{}, core.ErrReturnNotPending
}

func (r *ReturnRepoMongo) Reopen(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(core.ReturnApproved)},
		bson.M{
			"$set":   bson.M{"status": string(core.ReturnPending), "points_awarded": 0},
			"$unset": bson.M{"admin_note": "", "processed_by": "", "processed_at": ""},
		},
	)
	return mustMatch(res, err, "return_requests.reopen", core.ErrReturnNotFound)
}

func (r *ReturnRepoMongo) Stats(ctx context.Context) (core.ReturnStats, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Status   string `bson:"_id"`
		Count    int64  `bson:"count"`
		Refunded int64  `bson:"refunded"`
		Points   int64  `bson:"points"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":      "$status",
			"count":    bson.M{"$sum": 1},
			"refunded": bson.M{"$sum": "$refund_amount"},
			"points":   bson.M{"$sum": "$points_awarded"},
		}}},
	})
	if err != nil {
		return core.ReturnStats{}, err
	}
	st := core.ReturnStats{ByStatus: map[core.ReturnStatus]int64{
		core.ReturnPending: 0, core.ReturnApproved: 0, core.ReturnRejected: 0,
	}}
	for _, row := range rows {
		status := core.ReturnStatus(row.Status)
		st.ByStatus[status] = row.Count
		st.Total += row.Count
		if status == core.ReturnApproved {
			st.TotalRefunded = row.Refunded
			st.PointsAwarded = row.Points
		}
	}
	return st, nil
}
