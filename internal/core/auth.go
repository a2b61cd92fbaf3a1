package core

import (
	"context"
	"fmt"
	"time"
)

type OTPPurpose string

const (
	OTPPurposeRegister OTPPurpose = "register"
	OTPPurposeReset    OTPPurpose = "reset"
)

const (
	otpTTL          = 10 * time.Minute
	otpResendWindow = time.Minute
	otpMaxAttempts  = 5
)

// OTP is a hashed one-time code bound to an email and purpose.
type OTP struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	CodeHash  string     `json:"-"`
	Purpose   OTPPurpose `json:"purpose"`
	Attempts  int        `json:"attempts"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

type OTPRepo interface {
	// Replace drops earlier codes for the same email and purpose, then stores otp.
	Replace(ctx context.Context, otp OTP) error
	GetLatest(ctx context.Context, email string, purpose OTPPurpose) (OTP, error)
	IncrementAttempts(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TokenClaims are the verified contents of an access or refresh token.
type TokenClaims struct {
	UserID    string
	Role      Role
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies the token pair handed out at login.
type TokenIssuer interface {
	IssueAccess(u User) (token string, claims TokenClaims, err error)
	IssueRefresh(u User) (token string, claims TokenClaims, err error)
	ParseAccess(token string) (TokenClaims, error)
	ParseRefresh(token string) (TokenClaims, error)
}

// TokenRevoker remembers revoked token ids until they would have expired anyway.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Throttle allows one action per key per window.
type Throttle interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// Mailer delivers transactional email.
type Mailer interface {
	SendOTP(ctx context.Context, to string, purpose OTPPurpose, code string) error
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordInput struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AuthResult struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

func (in RegisterInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Code == "" {
		return fmt.Errorf("%w: verification code is required", ErrValidation)
	}
	return validatePassword(in.Password)
}

var (
	ErrOTPNotFound   = fmt.Errorf("%w: no verification code requested for this email", ErrValidation)
	ErrOTPExpired    = fmt.Errorf("%w: verification code has expired", ErrValidation)
	ErrOTPInvalid    = fmt.Errorf("%w: verification code is incorrect", ErrValidation)
	ErrOTPTooMany    = fmt.Errorf("%w: too many wrong attempts, request a new code", ErrValidation)
	ErrOTPThrottled  = fmt.Errorf("%w: a code was sent recently, try again in a minute", ErrTooManyRequests)
	ErrTokenRevoked  = fmt.Errorf("%w: token has been revoked", ErrUnauthorized)
	ErrInvalidToken  = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrWrongPassword = fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	ErrEmailNotFound = fmt.Errorf("%w: no account with this email", ErrNotFound)
	ErrAdminOnly     = fmt.Errorf("%w: admin access required", ErrForbidden)
)
