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

type VoucherRepoMongo struct {
	repo
}

func NewVoucherRepo(db *mongodrv.Database, opTimeout time.Duration) *VoucherRepoMongo {
	return &VoucherRepoMongo{newRepo(db, ColVouchers, opTimeout)}
}

func (r *VoucherRepoMongo) Create(ctx context.Context, v core.Voucher) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toVoucherDoc(v)); err != nil {
		if isDuplicateKey(err) {
			return core.ErrVoucherCodeTaken
		}
		return fmt.Errorf("vouchers.insert: %w", err)
	}
	return nil
}

func (r *VoucherRepoMongo) Get(ctx context.Context, id string) (core.Voucher, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[VoucherDoc](ctx, r.coll, bson.M{"_id": id}, core.ErrVoucherNotFound)
	return fromVoucherDoc(doc), err
}

func (r *VoucherRepoMongo) GetByCode(ctx context.Context, code string) (core.Voucher, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	doc, err := findOne[VoucherDoc](ctx, r.coll, bson.M{"code": code}, core.ErrVoucherNotFound)
	return fromVoucherDoc(doc), err
}

// Update leaves uses_count and claims_count alone; only the counters below move them.
func (r *VoucherRepoMongo) Update(ctx context.Context, v core.Voucher) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	d := toVoucherDoc(v)
	set := bson.M{
		"code":                d.Code,
		"description":         d.Description,
		"search_text":         d.SearchText,
		"discount_type":       d.DiscountType,
		"discount_value":      d.DiscountValue,
		"max_discount_amount": d.MaxDiscountAmount,
		"min_order_amount":    d.MinOrderAmount,
		"start_date":          d.StartDate,
		"end_date":            d.EndDate,
		"max_issued":          d.MaxIssued,
		"max_uses_per_user":   d.MaxUsesPerUser,
		"is_active":           d.IsActive,
		"disabled":            d.Disabled,
		"reward_type":         d.RewardType,
		"updated_at":          d.UpdatedAt,
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": v.ID}, bson.M{"$set": set})
	if isDuplicateKey(err) {
		return core.ErrVoucherCodeTaken
	}
	return mustMatch(res, err, "vouchers.update", core.ErrVoucherNotFound)
}

func (r *VoucherRepoMongo) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()
	return deleteByID(ctx, r.coll, id, core.ErrVoucherNotFound)
}

func inWindow(now time.Time) bson.M {
	return bson.M{"start_date": bson.M{"$lte": now}, "end_date": bson.M{"$gte": now}}
}

// statusFilter is the query form of Voucher.StatusAt.
func statusFilter(s core.VoucherStatus, now time.Time) bson.M {
	switch s {
	case core.VoucherInactive:
		closed := inWindow(now)
		closed["is_active"] = false
		return bson.M{"$or": bson.A{bson.M{"disabled": true}, closed}}
	case core.VoucherExpired:
		return bson.M{"disabled": false, "end_date": bson.M{"$lt": now}}
	case core.VoucherUpcoming:
		return bson.M{"disabled": false, "start_date": bson.M{"$gt": now}}
	case core.VoucherActive:
		active := inWindow(now)
		active["disabled"] = false
		active["is_active"] = true
		return active
	}
	return bson.M{}
}

func (r *VoucherRepoMongo) List(ctx context.Context, f core.VoucherFilter) ([]core.Voucher, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{}
	if f.Status != "" {
		filter = statusFilter(f.Status, f.Now)
	}
	if f.RewardType != "" {
		filter["reward_type"] = string(f.RewardType)
	}
	searchFilter(filter, f.Search)
	return findPage(ctx, r.coll, filter, f.Page, bson.D{{Key: "created_at", Value: -1}}, fromVoucherDoc)
}

// bump moves a counter by one. Increments stop at max_issued and
// decrements stop at zero.
func (r *VoucherRepoMongo) bump(ctx context.Context, id, field string, delta int) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{"_id": id}
	if delta > 0 {
		filter["$expr"] = bson.M{"$lt": bson.A{"$" + field, "$max_issued"}}
	} else {
		filter[field] = bson.M{"$gt": 0}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return fmt.Errorf("vouchers.bump %s: %w", field, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	found, err := exists(ctx, r.coll, bson.M{"_id": id})
	switch {
	case err != nil:
		return err
	case !found:
		return core.ErrVoucherNotFound
	case delta > 0:
		return core.ErrVoucherExhausted
	}
	return nil
}

func (r *VoucherRepoMongo) IncrementUses(ctx context.Context, id string) error {
	return r.bump(ctx, id, "uses_count", 1)
}

func (r *VoucherRepoMongo) DecrementUses(ctx context.Context, id string) error {
	return r.bump(ctx, id, "uses_count", -1)
}

func (r *VoucherRepoMongo) TryClaim(ctx context.Context, id string) error {
	return r.bump(ctx, id, "claims_count", 1)
}

func (r *VoucherRepoMongo) ReleaseClaim(ctx context.Context, id string) error {
	return r.bump(ctx, id, "claims_count", -1)
}

func (r *VoucherRepoMongo) SyncActiveWindow(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	open := inWindow(now)
	open["disabled"] = false
	open["is_active"] = false
	on, err := r.coll.UpdateMany(ctx, open, bson.M{"$set": bson.M{"is_active": true, "updated_at": now}})
	if err != nil {
		return 0, fmt.Errorf("vouchers.activate: %w", err)
	}

	closed := bson.M{
		"is_active": true,
		"$or": bson.A{
			bson.M{"disabled": true},
			bson.M{"start_date": bson.M{"$gt": now}},
			bson.M{"end_date": bson.M{"$lt": now}},
		},
	}
	off, err := r.coll.UpdateMany(ctx, closed, bson.M{"$set": bson.M{"is_active": false, "updated_at": now}})
	if err != nil {
		return on.ModifiedCount, fmt.Errorf("vouchers.deactivate: %w", err)
	}
	return on.ModifiedCount + off.ModifiedCount, nil
}

func (r *VoucherRepoMongo) Stats(ctx context.Context, now time.Time) (core.VoucherStats, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var st core.VoucherStats
	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&st.Total, bson.M{}},
		{&st.Active, statusFilter(core.VoucherActive, now)},
		{&st.Expired, statusFilter(core.VoucherExpired, now)},
	}
	for _, c := range counts {
		n, err := r.coll.CountDocuments(ctx, c.filter)
		if err != nil {
			return core.VoucherStats{}, fmt.Errorf("vouchers.count: %w", err)
		}
		*c.dst = n
	}

	rows, err := aggregate[struct {
		Usage int64 `bson:"usage"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "usage": bson.M{"$sum": "$uses_count"}}}},
	})
	if err != nil {
		return core.VoucherStats{}, err
	}
	if len(rows) > 0 {
		st.TotalUsage = rows[0].Usage
	}
	return st, nil
}

func (r *VoucherRepoMongo) TopClaimed(ctx context.Context, limit int) ([]core.Voucher, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "claims_count", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll(ctx, r.coll, bson.M{"claims_count": bson.M{"$gt": 0}}, opts, fromVoucherDoc)
}

type UserVoucherRepoMongo struct {
	repo
}

func NewUserVoucherRepo(db *mongodrv.Database, opTimeout time.Duration) *UserVoucherRepoMongo {
	return &UserVoucherRepoMongo{newRepo(db, ColUserVouchers, opTimeout)}
}

func (r *UserVoucherRepoMongo) Create(ctx context.Context, uv core.UserVoucher) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toUserVoucherDoc(uv)); err != nil {
		return fmt.Errorf("user_vouchers.insert: %w", err)
	}
	return nil
}

func (r *UserVoucherRepoMongo) ListByUser(ctx context.Context, userID string) ([]core.UserVoucher, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	return findAll(ctx, r.coll, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "claimed_at", Value: -1}}), fromUserVoucherDoc)
}

func (r *UserVoucherRepoMongo) CountForUser(ctx context.Context, userID, voucherID string) (claimed, used int64, err error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	rows, err := aggregate[struct {
		Claimed int64 `bson:"claimed"`
		Used    int64 `bson:"used"`
	}](ctx, r.coll, mongodrv.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "voucher_id": voucherID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"claimed": bson.M{"$sum": 1},
			"used":    bson.M{"$sum": bson.M{"$cond": bson.A{"$is_used", 1, 0}}},
		}}},
	})
	if err != nil || len(rows) == 0 {
		return 0, 0, err
	}
	return rows[0].Claimed, rows[0].Used, nil
}

func (r *UserVoucherRepoMongo) MarkUsed(ctx context.Context, userID, voucherID, orderID string, at time.Time) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "voucher_id": voucherID, "is_used": false},
		bson.M{"$set": bson.M{"is_used": true, "used_at": at, "order_id": orderID}},
		options.FindOneAndUpdate().SetSort(bson.D{{Key: "claimed_at", Value: 1}}),
	).Err()
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user_vouchers.markUsed: %w", err)
	}
	return true, nil
}

func (r *UserVoucherRepoMongo) ReleaseUse(ctx context.Context, userID, orderID string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	used := bson.M{"user_id": userID, "order_id": orderID, "is_used": true}
	if _, err := r.coll.DeleteMany(ctx, bson.M{
		"user_id": userID, "order_id": orderID, "is_used": true, "source": string(core.SourceOther),
	}); err != nil {
		return fmt.Errorf("user_vouchers.releaseUse: %w", err)
	}
	_, err := r.coll.UpdateMany(ctx, used, bson.M{
		"$set":   bson.M{"is_used": false},
		"$unset": bson.M{"used_at": "", "order_id": ""},
	})
	if err != nil {
		return fmt.Errorf("user_vouchers.releaseUse: %w", err)
	}
	return nil
}
