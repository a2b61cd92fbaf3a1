package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
	user := core.User{ID: "user-1", Role: core.RoleAdmin}

	t.Run("access round trip", func(t *testing.T) {
		tok, issued, err := svc.IssueAccess(user)
		require.NoError(t, err)

		claims, err := svc.ParseAccess(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, core.RoleAdmin, claims.Role)
		assert.Equal(t, issued.JTI, claims.JTI)
		assert.NotEmpty(t, claims.JTI)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		tok, _, err := svc.IssueRefresh(user)
		require.NoError(t, err)

		_, err = svc.ParseAccess(tok)
		assert.ErrorIs(t, err, core.ErrUnauthorized)

		_, err = svc.ParseRefresh(tok)
		assert.NoError(t, err)
	})

	t.Run("expired token", func(t *testing.T) {
		past := NewJWTService("access-secret", "refresh-secret", time.Minute, time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		tok, _, err := past.IssueAccess(user)
		require.NoError(t, err)

		_, err = svc.ParseAccess(tok)
		assert.ErrorIs(t, err, core.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ParseAccess("not-a-token")
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})
}

func TestMemoryRevoker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewMemoryRevoker()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Minute))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
