package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	TableNotifications = "uteshop_notifications"
	TableViewed        = "uteshop_viewed_products"
)

// LSIViewedAt orders a user's viewed products by time.
const LSIViewedAt = "viewed_at-index"

// EnsureTables creates all required tables if they don't exist.
func EnsureTables(ctx context.Context, client *dynamodb.Client, log *slog.Logger) error {
	tables := []*dynamodb.CreateTableInput{notificationsTable(), viewedTable()}

	for _, in := range tables {
		name := aws.ToString(in.TableName)
		exists, err := tableExists(ctx, client, name)
		if err != nil {
			return fmt.Errorf("check table %s: %w", name, err)
		}
		if exists {
			log.Info("table exists", "table", name)
			continue
		}

		log.Info("creating table", "table", name)
		if _, err := client.CreateTable(ctx, in); err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}
		log.Info("table created", "table", name)
	}
	return nil
}

func tableExists(ctx context.Context, client *dynamodb.Client, name string) (bool, error) {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func key(name string, kt types.KeyType) types.KeySchemaElement {
	return types.KeySchemaElement{AttributeName: aws.String(name), KeyType: kt}
}

func attr(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

// Notification ids are UUIDv7, so the sort key already orders a
// recipient's partition by creation time.
func notificationsTable() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(TableNotifications),
		KeySchema:            []types.KeySchemaElement{key("recipient", types.KeyTypeHash), key("id", types.KeyTypeRange)},
		AttributeDefinitions: []types.AttributeDefinition{attr("recipient"), attr("id")},
		BillingMode:          types.BillingModePayPerRequest,
	}
}

func viewedTable() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName:            aws.String(TableViewed),
		KeySchema:            []types.KeySchemaElement{key("user_id", types.KeyTypeHash), key("product_id", types.KeyTypeRange)},
		AttributeDefinitions: []types.AttributeDefinition{attr("user_id"), attr("product_id"), attr("viewed_at")},
		LocalSecondaryIndexes: []types.LocalSecondaryIndex{{
			IndexName:  aws.String(LSIViewedAt),
			KeySchema:  []types.KeySchemaElement{key("user_id", types.KeyTypeHash), key("viewed_at", types.KeyTypeRange)},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
		BillingMode: types.BillingModePayPerRequest,
	}
}
