package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ViewedRepo struct {
	client *dynamodb.Client
}

func NewViewedRepo(client *dynamodb.Client) *ViewedRepo {
	return &ViewedRepo{client: client}
}

var _ core.ViewedRepo = (*ViewedRepo)(nil)

// Record upserts the (user, product) pair; a repeat view moves it to the front.
func (r *ViewedRepo) Record(ctx context.Context, userID, productID string, at time.Time) error {
	av, err := attributevalue.MarshalMap(ViewedItem{UserID: userID, ProductID: productID, ViewedAt: formatTime(at)})
	if err != nil {
		return fmt.Errorf("viewed.marshal: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableViewed),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("viewed.putItem: %w", err)
	}
	return nil
}

func (r *ViewedRepo) List(ctx context.Context, userID string, limit int) ([]core.ViewedProduct, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("user_id").Equal(expression.Value(userID))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("viewed.buildExpr: %w", err)
	}
	in := &dynamodb.QueryInput{
		TableName:                 aws.String(TableViewed),
		IndexName:                 aws.String(LSIViewedAt),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	var raw []map[string]types.AttributeValue
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
		out, err := r.client.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("viewed.query: %w", err)
		}
		raw = out.Items
	} else if raw, err = queryAll(ctx, r.client, in); err != nil {
		return nil, err
	}

	var items []ViewedItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("viewed.unmarshal: %w", err)
	}
	views := make([]core.ViewedProduct, len(items))
	for i, it := range items {
		views[i] = it.ToCore()
	}
	return views, nil
}

func (r *ViewedRepo) Remove(ctx context.Context, userID, productID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(TableViewed),
		Key:       map[string]types.AttributeValue{"user_id": str(userID), "product_id": str(productID)},
	})
	if err != nil {
		return fmt.Errorf("viewed.deleteItem: %w", err)
	}
	return nil
}

func (r *ViewedRepo) Clear(ctx context.Context, userID string) error {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("user_id").Equal(expression.Value(userID))).
		WithProjection(expression.NamesList(expression.Name("user_id"), expression.Name("product_id"))).
		Build()
	if err != nil {
		return fmt.Errorf("viewed.buildExpr: %w", err)
	}
	keys, err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(TableViewed),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return err
	}
	return batchDelete(ctx, r.client, TableViewed, keys)
}
