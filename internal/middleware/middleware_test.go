package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/platform/token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(UserID(r.Context())))
})

func TestAuthenticate(t *testing.T) {
	tokens := token.NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	revoker := token.NewMemoryRevoker()
	h := Authenticate(tokens, revoker, logging.Discard())(okHandler)

	u := core.User{ID: "u1", Role: core.RoleCustomer}
	access, claims, err := tokens.IssueAccess(u)
	require.NoError(t, err)
	refresh, _, err := tokens.IssueRefresh(u)
	require.NoError(t, err)

	do := func(authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("anonymous passes through", func(t *testing.T) {
		rec := do("")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
	t.Run("valid token sets claims", func(t *testing.T) {
		rec := do("Bearer " + access)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})
	t.Run("refresh token is not an access token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+refresh).Code)
	})
	t.Run("garbage", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do("Bearer nope").Code)
	})
	t.Run("revoked", func(t *testing.T) {
		require.NoError(t, revoker.Revoke(context.Background(), claims.JTI, time.Hour))
		assert.Equal(t, http.StatusUnauthorized, do("Bearer "+access).Code)
	})
}

func TestRequireAuthAndAdmin(t *testing.T) {
	h := RequireAuth(RequireAdmin(okHandler))

	serve := func(ctx context.Context) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil).WithContext(ctx))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(context.Background()))
	assert.Equal(t, http.StatusForbidden, serve(WithClaims(context.Background(), core.TokenClaims{UserID: "u1", Role: core.RoleCustomer})))
	assert.Equal(t, http.StatusOK, serve(WithClaims(context.Background(), core.TokenClaims{UserID: "a1", Role: core.RoleAdmin})))
}

func TestInternalAPIKey(t *testing.T) {
	h := InternalAPIKey("s3cret")(okHandler)

	for key, want := range map[string]int{"": http.StatusUnauthorized, "wrong": http.StatusUnauthorized, "s3cret": http.StatusOK} {
		req := httptest.NewRequest(http.MethodPost, "/internal/notifications", nil)
		req.Header.Set("X-API-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "key %q", key)
	}

	rec := httptest.NewRecorder()
	InternalAPIKey("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/points", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "an unset key locks the routes")
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 2, time.Minute)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(okHandler)

	hit := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5000").Code)
	now = now.Add(10 * time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5001").Code)

	rec := hit("10.0.0.1:5002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "50", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, hit("[::1]:5000").Code, "other clients have their own window")

	now = now.Add(51 * time.Second)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1:5003").Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000/"})(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLimitRequestBody(t *testing.T) {
	h := LimitRequestBody(4, 8)(okHandler)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", http.NoBody)
	req.ContentLength = 5
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/products/p1/images", http.NoBody)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	req.ContentLength = 5
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
