package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/pkg/problem"
)

type claimsKey struct{}

// WithClaims stores verified token claims on ctx.
func WithClaims(ctx context.Context, c core.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims set by Authenticate, if any.
func ClaimsFrom(ctx context.Context) (core.TokenClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(core.TokenClaims)
	return c, ok
}

// UserID is the authenticated user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	c, _ := ClaimsFrom(ctx)
	return c.UserID
}

func bearer(r *http.Request) string {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate verifies a Bearer access token when one is present. Requests
// without a token pass through anonymously; a bad or revoked token is 401.
func Authenticate(tokens core.TokenIssuer, revoker core.TokenRevoker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				log.WarnContext(ctx, "invalid access token", "err", err)
				problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token")
				return
			}
			revoked, err := revoker.IsRevoked(ctx, claims.JTI)
			if err != nil {
				log.ErrorContext(ctx, "revocation lookup failed", "err", err)
				problem.WriteFor(w, r, http.StatusServiceUnavailable, "Service Unavailable", "Could not verify token")
				return
			}
			if revoked {
				problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", "Token has been revoked")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ClaimsFrom(r.Context()); !ok {
			problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, _ := ClaimsFrom(r.Context()); c.Role != core.RoleAdmin {
			problem.WriteFor(w, r, http.StatusForbidden, "Forbidden", "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InternalAPIKey guards service-to-service routes with a shared key sent
// as X-API-Key.
func InternalAPIKey(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-API-Key"))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				problem.WriteFor(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
