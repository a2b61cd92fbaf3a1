package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/pkg/problem"
)

// RateLimiter is a per-client sliding window kept in process memory.
// Each replica limits independently.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limit requests per window per client. Stale
// entries are swept until ctx is done.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	go rl.sweep(ctx)
	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	t := time.NewTicker(rl.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-rl.window)
			for k, ts := range rl.hits {
				if live := trim(ts, cutoff); len(live) == 0 {
					delete(rl.hits, k)
				} else {
					rl.hits[k] = live
				}
			}
			rl.mu.Unlock()
		}
	}
}

// trim drops timestamps at or before cutoff; ts is ascending.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// allow records a hit for key, or reports how long until one is allowed.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	live := trim(rl.hits[key], now.Add(-rl.window))
	if len(live) >= rl.limit {
		rl.hits[key] = live
		return false, live[0].Add(rl.window).Sub(now)
	}
	rl.hits[key] = append(live, now)
	return true, 0
}

// clientIP relies on chi's RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			problem.WriteFor(w, r, http.StatusTooManyRequests, "Too Many Requests",
				"Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
