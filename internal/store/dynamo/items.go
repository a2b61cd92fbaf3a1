package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/uteshop/uteshop-api/internal/core"
)

// timeLayout is fixed width so that string sort keys order chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

type NotificationActionItem struct {
	Label  string `dynamodbav:"label"`
	Action string `dynamodbav:"action"`
}

type NotificationItem struct {
	Recipient string                   `dynamodbav:"recipient"`
	ID        string                   `dynamodbav:"id"`
	Title     string                   `dynamodbav:"title"`
	Message   string                   `dynamodbav:"message"`
	Link      string                   `dynamodbav:"link,omitempty"`
	OrderID   string                   `dynamodbav:"order_id,omitempty"`
	Type      string                   `dynamodbav:"type"`
	Read      bool                     `dynamodbav:"read"`
	Actions   []NotificationActionItem `dynamodbav:"actions,omitempty"`
	CreatedAt string                   `dynamodbav:"created_at"`
}

func (i NotificationItem) ToCore() core.Notification {
	n := core.Notification{
		ID:        i.ID,
		Recipient: i.Recipient,
		Title:     i.Title,
		Message:   i.Message,
		Link:      i.Link,
		OrderID:   i.OrderID,
		Type:      core.NotificationType(i.Type),
		Read:      i.Read,
		CreatedAt: parseTime(i.CreatedAt),
	}
	for _, a := range i.Actions {
		n.Actions = append(n.Actions, core.NotificationAction(a))
	}
	return n
}

func notificationItemFromCore(n core.Notification) NotificationItem {
	item := NotificationItem{
		Recipient: n.Recipient,
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		OrderID:   n.OrderID,
		Type:      string(n.Type),
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
	for _, a := range n.Actions {
		item.Actions = append(item.Actions, NotificationActionItem(a))
	}
	return item
}

type ViewedItem struct {
	UserID    string `dynamodbav:"user_id"`
	ProductID string `dynamodbav:"product_id"`
	ViewedAt  string `dynamodbav:"viewed_at"`
}

func (i ViewedItem) ToCore() core.ViewedProduct {
	return core.ViewedProduct{UserID: i.UserID, ProductID: i.ProductID, ViewedAt: parseTime(i.ViewedAt)}
}

func str(v string) *types.AttributeValueMemberS { return &types.AttributeValueMemberS{Value: v} }

// queryAll follows LastEvaluatedKey until the query is exhausted.
func queryAll(ctx context.Context, client *dynamodb.Client, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var out []map[string]types.AttributeValue
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s.query: %w", aws.ToString(in.TableName), err)
		}
		out = append(out, page.Items...)
	}
	return out, nil
}

func countAll(ctx context.Context, client *dynamodb.Client, in *dynamodb.QueryInput) (int64, error) {
	in.Select = types.SelectCount
	var n int64
	p := dynamodb.NewQueryPaginator(client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s.count: %w", aws.ToString(in.TableName), err)
		}
		n += int64(page.Count)
	}
	return n, nil
}

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// batchDelete removes keys in batches, resubmitting unprocessed items.
func batchDelete(ctx context.Context, client *dynamodb.Client, table string, keys []map[string]types.AttributeValue) error {
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}

		pending := map[string][]types.WriteRequest{table: reqs}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == maxRetries {
				return fmt.Errorf("%s.batchDelete: %d items left unprocessed", table, len(pending[table]))
			}
			out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("%s.batchDelete: %w", table, err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}
