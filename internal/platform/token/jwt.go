// Package token signs and verifies the HS256 access/refresh token pair.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

const issuer = "uteshop-api"

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims is the JWT body of both token kinds.
type Claims struct {
	Role core.Role `json:"role"`
	Kind string    `json:"kind"`
	jwt.RegisteredClaims
}

// JWTService issues and verifies tokens. Access and refresh tokens use
// separate keys so one can never stand in for the other.
type JWTService struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

var _ core.TokenIssuer = (*JWTService)(nil)

func (s *JWTService) IssueAccess(u core.User) (string, core.TokenClaims, error) {
	return s.issue(u, kindAccess, s.accessKey, s.accessTTL)
}

func (s *JWTService) IssueRefresh(u core.User) (string, core.TokenClaims, error) {
	return s.issue(u, kindRefresh, s.refreshKey, s.refreshTTL)
}

func (s *JWTService) issue(u core.User, kind string, key []byte, ttl time.Duration) (string, core.TokenClaims, error) {
	now := s.now()
	claims := Claims{
		Role: u.Role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ids.New(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", core.TokenClaims{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, toCore(claims), nil
}

func (s *JWTService) ParseAccess(token string) (core.TokenClaims, error) {
	return s.parse(token, kindAccess, s.accessKey)
}

func (s *JWTService) ParseRefresh(token string) (core.TokenClaims, error) {
	return s.parse(token, kindRefresh, s.refreshKey)
}

func (s *JWTService) parse(token, kind string, key []byte) (core.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.TokenClaims{}, fmt.Errorf("%w: token has expired", core.ErrUnauthorized)
		}
		return core.TokenClaims{}, core.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return core.TokenClaims{}, core.ErrInvalidToken
	}
	return toCore(*claims), nil
}

func toCore(c Claims) core.TokenClaims {
	out := core.TokenClaims{UserID: c.Subject, Role: c.Role, JTI: c.ID}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
