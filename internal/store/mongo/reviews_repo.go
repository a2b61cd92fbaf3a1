package mongo

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ReviewRepoMongo struct {
	repo
}

func NewReviewRepo(db *mongodrv.Database, opTimeout time.Duration) *ReviewRepoMongo {
	return &ReviewRepoMongo{newRepo(db, ColReviews, opTimeout)}
}

func (r *ReviewRepoMongo) Create(ctx context.Context, rv core.Review) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toReviewDoc(rv)); err != nil {
		if isDuplicateKey(err) {
			return core.ErrReviewExists
		}
		return fmt.Errorf("reviews.insert: %w", err)
	}
	return nil
}

func (r *ReviewRepoMongo) Get(ctx context.Context, id string) (core.Review, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[ReviewDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrReviewNotFound)
	return fromReviewDoc(doc), err
}

func (r *ReviewRepoMongo) List(ctx context.Context, f core.ReviewFilter) ([]core.Review, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{}
	if f.ProductID != "" {
		filter["product_id"] = f.ProductID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Rating != 0 {
		filter["rating"] = f.Rating
	}
	if !f.IncludeDeleted {
		filter["is_deleted"] = false
	}
	return findPage(ctx, r.coll, filter, f.Page, bson.D{{Key: "created_at", Value: -1}}, fromReviewDoc)
}

func (r *ReviewRepoMongo) Summary(ctx context.Context, productID string) (core.RatingSummary, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Count   int64   `bson:"count"`
		Average float64 `bson:"average"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": productID, "is_deleted": false}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"count":   bson.M{"$sum": 1},
			"average": bson.M{"$avg": "$rating"},
		}}},
	})
	if err != nil || len(rows) == 0 {
		return core.RatingSummary{}, err
	}
	return core.RatingSummary{
		Count:   rows[0].Count,
		Average: math.Round(rows[0].Average*10) / 10,
	}, nil
}

func (r *ReviewRepoMongo) update(ctx context.Context, id, op string, update bson.M) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	return mustMatch(res, err, "reviews."+op, core.ErrReviewNotFound)
}

func (r *ReviewRepoMongo) SetReply(ctx context.Context, id string, reply core.ReviewReply) error {
	return r.update(ctx, id, "setReply", bson.M{"$set": bson.M{
		"admin_reply": ReviewReplyDoc(reply),
		"updated_at":  reply.RepliedAt,
	}})
}

func (r *ReviewRepoMongo) SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error {
	update := bson.M{"$set": bson.M{"is_deleted": true, "deleted_at": at, "updated_at": at}}
	if !deleted {
		update = bson.M{
			"$set":   bson.M{"is_deleted": false, "updated_at": at},
			"$unset": bson.M{"deleted_at": ""},
		}
	}
	return r.update(ctx, id, "setDeleted", update)
}

// MarkRewardClaimed only flips an unclaimed review, so a reward is granted once.
func (r *ReviewRepoMongo) MarkRewardClaimed(ctx context.Context, id string, kind core.RewardKind, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "reward_claimed": false},
		bson.M{"$set": bson.M{"reward_claimed": true, "reward_kind": string(kind), "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("reviews.markRewardClaimed: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	found, err := exists(ctx, r.coll, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if !found {
		return core.ErrReviewNotFound
	}
	return core.ErrRewardClaimed
}

func (r *ReviewRepoMongo) ResetReward(ctx context.Context, id string) error {
	return r.update(ctx, id, "resetReward", bson.M{
		"$set":   bson.M{"reward_claimed": false},
		"$unset": bson.M{"reward_kind": ""},
	})
}
