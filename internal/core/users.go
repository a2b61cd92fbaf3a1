package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type Tier string

const (
	TierBronze Tier = "BRONZE"
	TierSilver Tier = "SILVER"
	TierGold   Tier = "GOLD"
)

// LoyaltyPoints is the customer's current point balance and tier.
type LoyaltyPoints struct {
	Balance int64 `json:"balance"`
	Tier    Tier  `json:"tier"`
}

type User struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Role         Role          `json:"role"`
	Phone        string        `json:"phone,omitempty"`
	Address      string        `json:"address,omitempty"`
	BirthDate    *time.Time    `json:"birth_date,omitempty"`
	AvatarURL    string        `json:"avatar_url,omitempty"`
	IsActive     bool          `json:"is_active"`
	Loyalty      LoyaltyPoints `json:"loyalty_points"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ProfilePatch holds the fields a customer may change on their own account.
type ProfilePatch struct {
	Name      *string    `json:"name,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Address   *string    `json:"address,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	AvatarURL *string    `json:"avatar_url,omitempty"`
}

type UserFilter struct {
	Role       Role
	Search     string // name or email, case-insensitive
	MinBalance int64  // > 0 restricts to customers holding points
	IsActive   *bool
	CreatedGTE *time.Time
	CreatedLT  *time.Time
	SortBy     string // "created_at" (default) or "points"
	Page       Page
}

type UserRepo interface {
	Create(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	// AdjustPoints adds delta to the balance atomically. A negative delta that
	// would take the balance below zero fails with ErrInsufficientPoints.
	AdjustPoints(ctx context.Context, id string, delta int64) (int64, error)
	SetTier(ctx context.Context, id string, tier Tier) error
	// RecalculateTiers rewrites the tier of every customer from the thresholds.
	RecalculateTiers(ctx context.Context, silver, gold int64) (int64, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	Count(ctx context.Context, f UserFilter) (int64, error)
	CountByTier(ctx context.Context) (map[Tier]int64, error)
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases an address and checks its format.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !emailRegex.MatchString(email) {
		return "", fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return email, nil
}

func validatePassword(pw string) error {
	if len(pw) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if len(pw) > 72 {
		return fmt.Errorf("%w: password must be at most 72 characters", ErrValidation)
	}
	return nil
}

func (p ProfilePatch) apply(u *User) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		u.Name = name
	}
	if p.Phone != nil {
		u.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		u.Address = strings.TrimSpace(*p.Address)
	}
	if p.BirthDate != nil {
		if p.BirthDate.After(time.Now()) {
			return fmt.Errorf("%w: birth date cannot be in the future", ErrValidation)
		}
		bd := *p.BirthDate
		u.BirthDate = &bd
	}
	if p.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*p.AvatarURL)
	}
	return nil
}

var (
	ErrUserNotFound       = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrEmailTaken         = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrInsufficientPoints = fmt.Errorf("%w: insufficient points balance", ErrConflict)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrAccountDisabled    = fmt.Errorf("%w: account is disabled", ErrForbidden)
)
