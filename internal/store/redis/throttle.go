package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uteshop/uteshop-api/internal/core"
)

const throttleKeyPrefix = "uteshop:throttle:"

// Throttle admits the first call per key in each window using SET NX.
type Throttle struct {
	client redis.UniversalClient
}

func NewThrottle(client redis.UniversalClient) *Throttle {
	return &Throttle{client: client}
}

var _ core.Throttle = (*Throttle)(nil)

func (t *Throttle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	ok, err := t.client.SetNX(ctx, throttleKeyPrefix+key, "1", window).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
