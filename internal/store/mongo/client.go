package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/uteshop/uteshop-api/internal/platform/config"
)

const (
	maxConnectAttempts = 5
	initialBackoff     = 1 * time.Second
	maxBackoff         = 30 * time.Second
)

type Client struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect dials MongoDB and pings it, retrying with exponential backoff
// while the database container is still starting.
func Connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Client, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("mongo: MONGODB_URI is not set")
	}
	if log == nil {
		log = slog.Default()
	}
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName("uteshop-api")

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		client, err := dial(ctx, opts, time.Duration(cfg.MongoConnectTimeoutSec)*time.Second)
		if err == nil {
			return &Client{Client: client, DB: client.Database(cfg.MongoDB)}, nil
		}
		if attempt == maxConnectAttempts {
			return nil, fmt.Errorf("connect to mongo after %d attempts: %w", attempt, err)
		}
		log.Warn("mongo connect failed, retrying", "attempt", attempt, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func dial(ctx context.Context, opts *options.ClientOptions, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// Ping verifies connectivity (used by /readyz).
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.Client.Disconnect(ctx)
}
