package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/uteshop/uteshop-api/internal/core"
)

type NotificationRepo struct {
	client *dynamodb.Client
}

func NewNotificationRepo(client *dynamodb.Client) *NotificationRepo {
	return &NotificationRepo{client: client}
}

var _ core.NotificationRepo = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n core.Notification) error {
	av, err := attributevalue.MarshalMap(notificationItemFromCore(n))
	if err != nil {
		return fmt.Errorf("notifications.marshal: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return fmt.Errorf("notifications.buildExpr: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(TableNotifications),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: notification %s already exists", core.ErrConflict, n.ID)
		}
		return fmt.Errorf("notifications.putItem: %w", err)
	}
	return nil
}

// query builds a newest-first query over one recipient's partition,
// optionally restricted by read state.
func (r *NotificationRepo) query(recipient string, read *bool) (*dynamodb.QueryInput, error) {
	b := expression.NewBuilder().
		WithKeyCondition(expression.Key("recipient").Equal(expression.Value(recipient)))
	if read != nil {
		b = b.WithFilter(expression.Name("read").Equal(expression.Value(*read)))
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("notifications.buildExpr: %w", err)
	}
	return &dynamodb.QueryInput{
		TableName:                 aws.String(TableNotifications),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}, nil
}

func (r *NotificationRepo) List(ctx context.Context, recipient string, unreadOnly bool, p core.Page) ([]core.Notification, int64, error) {
	var read *bool
	if unreadOnly {
		read = aws.Bool(false)
	}
	in, err := r.query(recipient, read)
	if err != nil {
		return nil, 0, err
	}
	raw, err := queryAll(ctx, r.client, in)
	if err != nil {
		return nil, 0, err
	}

	var items []NotificationItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("notifications.unmarshal: %w", err)
	}
	total := int64(len(items))

	// Offset paging over the partition; a recipient's inbox is small.
	if p.Limit > 0 {
		start := min(p.Offset(), len(items))
		end := min(start+p.Limit, len(items))
		items = items[start:end]
	}

	out := make([]core.Notification, len(items))
	for i, it := range items {
		out[i] = it.ToCore()
	}
	return out, total, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipient string) (int64, error) {
	in, err := r.query(recipient, aws.Bool(false))
	if err != nil {
		return 0, err
	}
	return countAll(ctx, r.client, in)
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipient, id string) error {
	if err := r.markRead(ctx, recipient, id); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return core.ErrNotificationNotFound
		}
		return fmt.Errorf("notifications.markRead: %w", err)
	}
	return nil
}

func (r *NotificationRepo) markRead(ctx context.Context, recipient, id string) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("read"), expression.Value(true))).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(TableNotifications),
		Key:                       map[string]types.AttributeValue{"recipient": str(recipient), "id": str(id)},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return err
}

// keysWhere returns the primary keys of the recipient's items in the given read state.
func (r *NotificationRepo) keysWhere(ctx context.Context, recipient string, read bool) ([]map[string]types.AttributeValue, error) {
	in, err := r.query(recipient, aws.Bool(read))
	if err != nil {
		return nil, err
	}
	raw, err := queryAll(ctx, r.client, in)
	if err != nil {
		return nil, err
	}
	keys := make([]map[string]types.AttributeValue, len(raw))
	for i, item := range raw {
		keys[i] = map[string]types.AttributeValue{"recipient": item["recipient"], "id": item["id"]}
	}
	return keys, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	keys, err := r.keysWhere(ctx, recipient, false)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, k := range keys {
		id := k["id"].(*types.AttributeValueMemberS).Value
		if err := r.markRead(ctx, recipient, id); err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue // deleted meanwhile
			}
			return n, fmt.Errorf("notifications.markAllRead: %w", err)
		}
		n++
	}
	return n, nil
}

func (r *NotificationRepo) DeleteRead(ctx context.Context, recipient string) (int64, error) {
	keys, err := r.keysWhere(ctx, recipient, true)
	if err != nil {
		return 0, err
	}
	if err := batchDelete(ctx, r.client, TableNotifications, keys); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}
