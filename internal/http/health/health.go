// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is one dependency probed by /readyz. Optional dependencies are
// reported but do not fail readiness; the service degrades without them.
type Check struct {
	Name     string
	Pinger   Pinger
	Optional bool
}

type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// New builds the /health and /readyz routes.
func New(log *slog.Logger, opTimeout time.Duration, checks ...Check) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), opTimeout)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				results[i] = c.Pinger.Ping(ctx)
				return nil
			})
		}
		_ = g.Wait()

		rep := report{Status: "ready", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for i, c := range checks {
			if err := results[i]; err != nil {
				rep.Checks[c.Name] = err.Error()
				log.WarnContext(ctx, "readiness check failed", "check", c.Name, "optional", c.Optional, "err", err)
				if !c.Optional {
					rep.Status = "not ready"
					status = http.StatusServiceUnavailable
				}
				continue
			}
			rep.Checks[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(rep)
	})

	return r
}
