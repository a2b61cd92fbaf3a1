package transporthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/http/handlers"
	"github.com/uteshop/uteshop-api/internal/middleware"
)

// Deps is everything the router needs. Handlers are listed once per surface
// they serve.
type Deps struct {
	Log     *slog.Logger
	Tokens  core.TokenIssuer
	Revoker core.TokenRevoker

	Health http.Handler
	// Live is the realtime notification websocket; it authenticates itself.
	Live http.Handler

	Mounts   []handlers.Mountable
	Admin    []handlers.AdminMountable
	Internal []handlers.InternalMountable

	InternalAPIKey string
	AllowedOrigins []string
	RequestTimeout time.Duration
	// RateLimitPerMinute is per client IP across /api; zero disables it.
	RateLimitPerMinute int
}

// NewRouter builds the HTTP surface. ctx bounds background helpers such as
// the rate limiter sweep.
func NewRouter(ctx context.Context, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(d.AllowedOrigins))

	if d.Health != nil {
		r.Handle("/health", d.Health)
		r.Handle("/readyz", d.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	// Long-lived, so outside the request timeout.
	if d.Live != nil {
		r.Get("/api/notifications/ws", d.Live.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if d.RequestTimeout > 0 {
			r.Use(chimw.Timeout(d.RequestTimeout))
		}
		r.Use(middleware.LimitRequestBody(middleware.MaxBodySize, middleware.MaxUploadSize))
		r.Use(middleware.SetJSONContentType)

		r.Route("/api", func(r chi.Router) {
			if d.RateLimitPerMinute > 0 {
				r.Use(middleware.NewRateLimiter(ctx, d.RateLimitPerMinute, time.Minute).Middleware)
			}
			r.Use(middleware.Authenticate(d.Tokens, d.Revoker, d.Log))

			for _, m := range d.Mounts {
				m.Mount(r)
			}

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAuth, middleware.RequireAdmin)
				for _, m := range d.Admin {
					m.MountAdmin(r)
				}
			})
		})

		r.Route("/internal", func(r chi.Router) {
			r.Use(middleware.InternalAPIKey(d.InternalAPIKey))
			for _, m := range d.Internal {
				m.MountInternal(r)
			}
		})
	})

	return r
}
