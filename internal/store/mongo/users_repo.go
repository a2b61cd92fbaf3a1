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

type UserRepoMongo struct {
	repo
}

func NewUserRepo(db *mongodrv.Database, opTimeout time.Duration) *UserRepoMongo {
	return &UserRepoMongo{newRepo(db, ColUsers, opTimeout)}
}

func (r *UserRepoMongo) Create(ctx context.Context, u core.User) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if isDuplicateKey(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("users.insert: %w", err)
	}
	return nil
}

func (r *UserRepoMongo) Get(ctx context.Context, id string) (core.User, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[UserDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrUserNotFound)
	return fromUserDoc(doc), err
}

func (r *UserRepoMongo) GetByEmail(ctx context.Context, email string) (core.User, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[UserDoc](ctx, r.coll, bson.M{"email": email}, core.ErrUserNotFound)
	return fromUserDoc(doc), err
}

// Update rewrites the profile. Balance, tier and password hash have their own writers.
func (r *UserRepoMongo) Update(ctx context.Context, u core.User) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	d := toUserDoc(u)
	set := bson.M{
		"name":        d.Name,
		"email":       d.Email,
		"role":        d.Role,
		"phone":       d.Phone,
		"address":     d.Address,
		"birth_date":  d.BirthDate,
		"avatar_url":  d.AvatarURL,
		"is_active":   d.IsActive,
		"search_text": d.SearchText,
		"updated_at":  d.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": set})
	if isDuplicateKey(err) {
		return core.ErrEmailTaken
	}
	return mustMatch(res, err, "users.update", core.ErrUserNotFound)
}

func (r *UserRepoMongo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": at}})
	return mustMatch(res, err, "users.updatePassword", core.ErrUserNotFound)
}

func (r *UserRepoMongo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_active": active, "updated_at": at}})
	return mustMatch(res, err, "users.setActive", core.ErrUserNotFound)
}

// AdjustPoints guards debits with a balance precondition so two concurrent
// redemptions cannot overdraw the account.
func (r *UserRepoMongo) AdjustPoints(ctx context.Context, id string, delta int64) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	if delta < 0 {
		filter["loyalty.balance"] = bson.M{"$gte": -delta}
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"loyalty": 1})

	var doc UserDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{"loyalty.balance": delta}}, opts).Decode(&doc)
	if err == nil {
		return doc.Loyalty.Balance, nil
	}
	if !errors.Is(err, mongodrv.ErrNoDocuments) {
		return 0, fmt.Errorf("users.adjustPoints: %w", err)
	}
	cur, err := findOne[UserDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrUserNotFound)
	if err != nil {
		return 0, err
	}
	return cur.Loyalty.Balance, core.ErrInsufficientPoints
}

func (r *UserRepoMongo) SetTier(ctx context.Context, id string, tier core.Tier) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"loyalty.tier": string(tier)}})
	return mustMatch(res, err, "users.setTier", core.ErrUserNotFound)
}

// RecalculateTiers runs one update per tier band.
func (r *UserRepoMongo) RecalculateTiers(ctx context.Context, silver, gold int64) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	bands := []struct {
		tier    core.Tier
		balance bson.M
	}{
		{core.TierGold, bson.M{"$gte": gold}},
		{core.TierSilver, bson.M{"$gte": silver, "$lt": gold}},
		{core.TierBronze, bson.M{"$lt": silver}},
	}
	var changed int64
	for _, b := range bands {
		res, err := r.coll.UpdateMany(ctx,
			bson.M{
				"role":            string(core.RoleCustomer),
				"loyalty.balance": b.balance,
				"loyalty.tier":    bson.M{"$ne": string(b.tier)},
			},
			bson.M{"$set": bson.M{"loyalty.tier": string(b.tier)}},
		)
		if err != nil {
			return changed, fmt.Errorf("users.recalculateTiers: %w", err)
		}
		changed += res.ModifiedCount
	}
	return changed, nil
}

func userFilter(f core.UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = string(f.Role)
	}
	if f.MinBalance > 0 {
		filter["loyalty.balance"] = bson.M{"$gte": f.MinBalance}
	}
	if f.IsActive != nil {
		filter["is_active"] = *f.IsActive
	}
	createdRange(filter, f.CreatedGTE, f.CreatedLT)
	searchFilter(filter, f.Search)
	return filter
}

func (r *UserRepoMongo) List(ctx context.Context, f core.UserFilter) ([]core.User, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	sort := bson.D{{Key: "created_at", Value: -1}}
	if f.SortBy == "points" {
		sort = append(bson.D{{Key: "loyalty.balance", Value: -1}}, sort...)
	}
	return findPage(ctx, r.coll, userFilter(f), f.Page, sort, fromUserDoc)
}

func (r *UserRepoMongo) Count(ctx context.Context, f core.UserFilter) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, userFilter(f))
	if err != nil {
		return 0, fmt.Errorf("users.count: %w", err)
	}
	return n, nil
}

func (r *UserRepoMongo) CountByTier(ctx context.Context) (map[core.Tier]int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Tier  string `bson:"_id"`
		Count int64  `bson:"count"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: bson.M{"role": string(core.RoleCustomer)}}},
		{{Key: "$group", Value: bson.M{"_id": "$loyalty.tier", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	out := map[core.Tier]int64{core.TierBronze: 0, core.TierSilver: 0, core.TierGold: 0}
	for _, row := range rows {
		tier := core.Tier(row.Tier)
		if tier == "" {
			tier = core.TierBronze
		}
		out[tier] += row.Count
	}
	return out, nil
}

type OTPRepoMongo struct {
	repo
}

func NewOTPRepo(db *mongodrv.Database, opTimeout time.Duration) *OTPRepoMongo {
	return &OTPRepoMongo{newRepo(db, ColOTPs, opTimeout)}
}

func (r *OTPRepoMongo) Replace(ctx context.Context, otp core.OTP) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteMany(ctx, bson.M{"email": otp.Email, "purpose": string(otp.Purpose)}); err != nil {
		return fmt.Errorf("otps.deleteMany: %w", err)
	}
	if _, err := r.coll.InsertOne(ctx, toOTPDoc(otp)); err != nil {
		return fmt.Errorf("otps.insert: %w", err)
	}
	return nil
}

func (r *OTPRepoMongo) GetLatest(ctx context.Context, email string, purpose core.OTPPurpose) (core.OTP, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[OTPDoc](ctx, r.coll,
		bson.M{"email": email, "purpose": string(purpose)},
		core.ErrNotFound,
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	return fromOTPDoc(doc), err
}

func (r *OTPRepoMongo) IncrementAttempts(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"attempts": 1}})
	return mustMatch(res, err, "otps.incrementAttempts", core.ErrNotFound)
}

func (r *OTPRepoMongo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("otps.delete: %w", err)
	}
	return nil
}
