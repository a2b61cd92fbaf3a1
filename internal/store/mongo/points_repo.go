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

const pointsConfigID = "points"

// PointsConfigRepoMongo keeps the loyalty settings as one document in the
// settings collection.
type PointsConfigRepoMongo struct {
	repo
}

func NewPointsConfigRepo(db *mongodrv.Database, opTimeout time.Duration) *PointsConfigRepoMongo {
	return &PointsConfigRepoMongo{newRepo(db, ColSettings, opTimeout)}
}

func (r *PointsConfigRepoMongo) Get(ctx context.Context) (core.PointsConfig, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var d PointsConfigDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": pointsConfigID}).Decode(&d)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return core.DefaultPointsConfig(), nil
	}
	if err != nil {
		return core.PointsConfig{}, fmt.Errorf("settings.findOne: %w", err)
	}
	return core.PointsConfig{
		PointsValue:     d.PointsValue,
		SilverThreshold: d.SilverThreshold,
		GoldThreshold:   d.GoldThreshold,
		PointsPerOrder:  d.PointsPerOrder,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

func (r *PointsConfigRepoMongo) Save(ctx context.Context, c core.PointsConfig) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	d := PointsConfigDoc{
		ID:              pointsConfigID,
		PointsValue:     c.PointsValue,
		SilverThreshold: c.SilverThreshold,
		GoldThreshold:   c.GoldThreshold,
		PointsPerOrder:  c.PointsPerOrder,
		UpdatedAt:       c.UpdatedAt,
	}
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": pointsConfigID}, d, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("settings.replace: %w", err)
	}
	return nil
}

type PointTxRepoMongo struct {
	repo
}

func NewPointTxRepo(db *mongodrv.Database, opTimeout time.Duration) *PointTxRepoMongo {
	return &PointTxRepoMongo{newRepo(db, ColPointTxs, opTimeout)}
}

func (r *PointTxRepoMongo) Create(ctx context.Context, tx core.PointTx) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toPointTxDoc(tx)); err != nil {
		return fmt.Errorf("point_transactions.insert: %w", err)
	}
	return nil
}

func (r *PointTxRepoMongo) List(ctx context.Context, f core.PointTxFilter) ([]core.PointTx, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Type != "" {
		filter["type"] = string(f.Type)
	}
	return findPage(ctx, r.coll, filter, f.Page, bson.D{{Key: "created_at", Value: -1}}, fromPointTxDoc)
}

func (r *PointTxRepoMongo) ExistsForOrder(ctx context.Context, orderID string, t core.PointTxType) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return exists(ctx, r.coll, bson.M{"order_id": orderID, "type": string(t)})
}

// issued matches EARNED and positive ADJUSTMENT entries.
func issued() bson.M {
	return bson.M{
		"type":   bson.M{"$in": bson.A{string(core.PointsEarned), string(core.PointsAdjustment)}},
		"points": bson.M{"$gt": 0},
	}
}

func (r *PointTxRepoMongo) Totals(ctx context.Context) (core.PointTotals, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Issued   int64 `bson:"issued"`
		Redeemed int64 `bson:"redeemed"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"issued": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$or": bson.A{
					bson.M{"$eq": bson.A{"$type", string(core.PointsEarned)}},
					bson.M{"$and": bson.A{
						bson.M{"$eq": bson.A{"$type", string(core.PointsAdjustment)}},
						bson.M{"$gt": bson.A{"$points", 0}},
					}},
				}},
				"$points", 0,
			}}},
			"redeemed": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$type", string(core.PointsRedeemed)}},
				bson.M{"$abs": "$points"}, 0,
			}}},
		}}},
	})
	if err != nil || len(rows) == 0 {
		return core.PointTotals{}, err
	}
	return core.PointTotals{Issued: rows[0].Issued, Redeemed: rows[0].Redeemed}, nil
}

func (r *PointTxRepoMongo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}})
	if err != nil {
		return 0, fmt.Errorf("point_transactions.count: %w", err)
	}
	return n, nil
}

func (r *PointTxRepoMongo) EarnedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	match := issued()
	createdRange(match, &from, &to)
	rows, err := aggregate[struct {
		Points int64 `bson:"points"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "points": bson.M{"$sum": "$points"}}}},
	})
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Points, nil
}
