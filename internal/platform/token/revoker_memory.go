package token

import (
	"context"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

// MemoryRevoker is the revocation list used when Redis is not configured.
// Entries are dropped lazily once their TTL has passed.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

var _ core.TokenRevoker = (*MemoryRevoker)(nil)

func (r *MemoryRevoker) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[jti] = r.now().Add(ttl)
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if r.now().After(until) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}
