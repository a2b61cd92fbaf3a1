package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/uteshop/uteshop-api/internal/core"
)

type NotificationRepoMongo struct {
	repo
}

func NewNotificationRepo(db *mongodrv.Database, opTimeout time.Duration) *NotificationRepoMongo {
	return &NotificationRepoMongo{newRepo(db, ColNotifications, opTimeout)}
}

func (r *NotificationRepoMongo) Create(ctx context.Context, n core.Notification) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toNotificationDoc(n)); err != nil {
		return fmt.Errorf("notifications.insert: %w", err)
	}
	return nil
}

func (r *NotificationRepoMongo) List(ctx context.Context, recipient string, unreadOnly bool, p core.Page) ([]core.Notification, int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	filter := bson.M{"recipient": recipient}
	if unreadOnly {
		filter["read"] = false
	}
	return findPage(ctx, r.coll, filter, p, bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}, fromNotificationDoc)
}

func (r *NotificationRepoMongo) CountUnread(ctx context.Context, recipient string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"recipient": recipient, "read": false})
	if err != nil {
		return 0, fmt.Errorf("notifications.count: %w", err)
	}
	return n, nil
}

func (r *NotificationRepoMongo) MarkRead(ctx context.Context, recipient, id string) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "recipient": recipient}, bson.M{"$set": bson.M{"read": true}})
	return mustMatch(res, err, "notifications.markRead", core.ErrNotificationNotFound)
}

func (r *NotificationRepoMongo) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.UpdateMany(ctx, bson.M{"recipient": recipient, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("notifications.markAllRead: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *NotificationRepoMongo) DeleteRead(ctx context.Context, recipient string) (int64, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.coll.DeleteMany(ctx, bson.M{"recipient": recipient, "read": true})
	if err != nil {
		return 0, fmt.Errorf("notifications.deleteRead: %w", err)
	}
	return res.DeletedCount, nil
}
