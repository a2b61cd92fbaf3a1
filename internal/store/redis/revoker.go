package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uteshop/uteshop-api/internal/core"
)

const revokedKeyPrefix = "uteshop:revoked:"

// Revoker is a TokenRevoker shared by every API instance.
type Revoker struct {
	client redis.UniversalClient
}

func NewRevoker(client redis.UniversalClient) *Revoker {
	return &Revoker{client: client}
}

var _ core.TokenRevoker = (*Revoker)(nil)

// Revoke marks jti until ttl elapses, after which the token has expired anyway.
func (r *Revoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}

func (r *Revoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := r.client.Get(ctx, revokedKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
