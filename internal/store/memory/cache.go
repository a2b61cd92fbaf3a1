package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// Cache is the process-local product list cache used without Redis.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

var _ core.Cache = (*Cache)(nil)

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

func (c *Cache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Throttle admits the first call per key in each window.
type Throttle struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewThrottle() *Throttle {
	return &Throttle{until: make(map[string]time.Time), now: time.Now}
}

var _ core.Throttle = (*Throttle)(nil)

func (t *Throttle) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if until, ok := t.until[key]; ok && now.Before(until) {
		return false, nil
	}
	t.until[key] = now.Add(window)
	return true, nil
}
