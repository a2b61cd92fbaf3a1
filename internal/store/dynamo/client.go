// Package dynamo stores notifications and recently viewed products in DynamoDB.
package dynamo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/uteshop/uteshop-api/internal/platform/awscfg"
)

const (
	maxRetries     = 5
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Client wraps the DynamoDB client.
type Client struct {
	DB *dynamodb.Client
}

type Config struct {
	Region   string
	Endpoint string // Optional: DynamoDB Local, e.g. "http://localhost:8000"
	// For local development only - in production use IAM roles
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient connects and waits until DynamoDB answers.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	awsCfg, err := awscfg.Load(ctx, awscfg.Options{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Local:           cfg.Endpoint != "",
	})
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if err := pingWithRetry(ctx, client, log); err != nil {
		return nil, err
	}
	return &Client{DB: client}, nil
}

func pingWithRetry(ctx context.Context, client *dynamodb.Client, log *slog.Logger) error {
	backoff := initialBackoff

	for attempt := 1; ; attempt++ {
		err := ping(ctx, client)
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			return fmt.Errorf("dynamodb ping failed after %d attempts: %w", maxRetries, err)
		}

		log.Warn("dynamodb ping failed, retrying", "attempt", attempt, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func ping(ctx context.Context, client *dynamodb.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

// Ping checks DynamoDB connectivity by listing tables.
func (c *Client) Ping(ctx context.Context) error {
	return ping(ctx, c.DB)
}
