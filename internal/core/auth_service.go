package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

type AuthService interface {
	RequestRegisterOTP(ctx context.Context, email string) error
	Register(ctx context.Context, in RegisterInput) (User, error)
	Login(ctx context.Context, in LoginInput) (AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (AuthResult, error)
	Logout(ctx context.Context, access TokenClaims, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
	Me(ctx context.Context, userID string) (User, error)
	UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error)
	ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error
	// CreateAdmin provisions an administrator without the OTP round trip.
	CreateAdmin(ctx context.Context, name, email, password string) (User, error)
}

type authService struct {
	users    UserRepo
	otps     OTPRepo
	tokens   TokenIssuer
	revoker  TokenRevoker
	throttle Throttle
	mailer   Mailer
	log      *slog.Logger
	clock    func() time.Time
	cost     int
}

// AuthDeps groups the ports the auth service talks to. Throttle may be nil.
type AuthDeps struct {
	Users    UserRepo
	OTPs     OTPRepo
	Tokens   TokenIssuer
	Revoker  TokenRevoker
	Throttle Throttle
	Mailer   Mailer
	Log      *slog.Logger
}

func NewAuthService(d AuthDeps, opts ...Option) AuthService {
	o := buildOptions(opts)
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &authService{
		users:    d.Users,
		otps:     d.OTPs,
		tokens:   d.Tokens,
		revoker:  d.Revoker,
		throttle: d.Throttle,
		mailer:   d.Mailer,
		log:      log,
		clock:    o.clock,
		cost:     o.bcryptCost,
	}
}

func (s *authService) RequestRegisterOTP(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	return s.issueOTP(ctx, email, OTPPurposeRegister)
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (User, error) {
	// 1) Validate input
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return User{}, err
	}

	// 2) Verify the code
	if err := s.verifyOTP(ctx, email, OTPPurposeRegister, in.Code); err != nil {
		return User{}, err
	}

	// 3) Create the account
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock()
	user := User{
		ID:           ids.New(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleCustomer,
		IsActive:     true,
		Loyalty:      LoyaltyPoints{Balance: 0, Tier: TierBronze},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return User{}, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if in.Password == "" {
		return AuthResult{}, fmt.Errorf("%w: password is required", ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return AuthResult{}, ErrAccountDisabled
	}

	return s.issuePair(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	if refreshToken == "" {
		return AuthResult{}, fmt.Errorf("%w: refresh_token is required", ErrValidation)
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return AuthResult{}, ErrInvalidToken
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return AuthResult{}, err
	}
	if revoked {
		return AuthResult{}, ErrTokenRevoked
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AuthResult{}, ErrInvalidToken
		}
		return AuthResult{}, err
	}
	if !user.IsActive {
		return AuthResult{}, ErrAccountDisabled
	}

	// Rotate: the presented refresh token is single use.
	if err := s.revoker.Revoke(ctx, claims.JTI, s.remaining(claims)); err != nil {
		return AuthResult{}, err
	}
	return s.issuePair(user)
}

func (s *authService) Logout(ctx context.Context, access TokenClaims, refreshToken string) error {
	if access.JTI != "" {
		if err := s.revoker.Revoke(ctx, access.JTI, s.remaining(access)); err != nil {
			return err
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		// Already unusable.
		return nil
	}
	if claims.UserID != access.UserID {
		return fmt.Errorf("%w: refresh token belongs to another user", ErrForbidden)
	}
	return s.revoker.Revoke(ctx, claims.JTI, s.remaining(claims))
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}
	return s.issueOTP(ctx, email, OTPPurposeReset)
}

func (s *authService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return err
	}
	if in.Code == "" {
		return fmt.Errorf("%w: verification code is required", ErrValidation)
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrEmailNotFound
		}
		return err
	}

	if err := s.verifyOTP(ctx, email, OTPPurposeReset, in.Code); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash), s.clock())
}

func (s *authService) Me(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrUnauthorized
	}
	return s.users.Get(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if err := patch.apply(&user); err != nil {
		return User{}, err
	}
	user.UpdatedAt = s.clock()
	if err := s.users.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash), s.clock())
}

func (s *authService) CreateAdmin(ctx context.Context, name, email, password string) (User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return User{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock()
	user := User{
		ID:           ids.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		IsActive:     true,
		Loyalty:      LoyaltyPoints{Tier: TierBronze},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return User{}, err
	}
	s.log.InfoContext(ctx, "admin created", "user_id", user.ID)
	return user, nil
}

func (s *authService) issuePair(user User) (AuthResult, error) {
	access, accessClaims, err := s.tokens.IssueAccess(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, _, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return AuthResult{
		Token:        access,
		RefreshToken: refresh,
		ExpiresAt:    accessClaims.ExpiresAt,
		User:         user,
	}, nil
}

func (s *authService) remaining(c TokenClaims) time.Duration {
	ttl := c.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func (s *authService) issueOTP(ctx context.Context, email string, purpose OTPPurpose) error {
	if s.throttle != nil {
		ok, err := s.throttle.Allow(ctx, "otp:"+string(purpose)+":"+email, otpResendWindow)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOTPThrottled
		}
	}

	code, err := generateOTPCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := s.clock()
	otp := OTP{
		ID:        ids.New(),
		Email:     email,
		CodeHash:  string(hash),
		Purpose:   purpose,
		ExpiresAt: now.Add(otpTTL),
		CreatedAt: now,
	}
	if err := s.otps.Replace(ctx, otp); err != nil {
		return err
	}

	if err := s.mailer.SendOTP(ctx, email, purpose, code); err != nil {
		s.dropOTP(ctx, otp.ID)
		return fmt.Errorf("%w: could not send verification email: %v", ErrUnavailable, err)
	}
	metrics.OTPSent.WithLabelValues(string(purpose)).Inc()
	return nil
}

func (s *authService) dropOTP(ctx context.Context, id string) {
	if err := s.otps.Delete(ctx, id); err != nil {
		s.log.WarnContext(ctx, "delete otp failed", "otp_id", id, "err", err)
	}
}

func (s *authService) verifyOTP(ctx context.Context, email string, purpose OTPPurpose, code string) error {
	otp, err := s.otps.GetLatest(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOTPNotFound
		}
		return err
	}

	if s.clock().After(otp.ExpiresAt) {
		s.dropOTP(ctx, otp.ID)
		return ErrOTPExpired
	}
	if otp.Attempts >= otpMaxAttempts {
		s.dropOTP(ctx, otp.ID)
		return ErrOTPTooMany
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(strings.TrimSpace(code))); err != nil {
		if incErr := s.otps.IncrementAttempts(ctx, otp.ID); incErr != nil {
			return incErr
		}
		return ErrOTPInvalid
	}

	return s.otps.Delete(ctx, otp.ID)
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
