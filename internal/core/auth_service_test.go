package core_test

//go:generate mockgen -source=auth.go -destination=mocks/mock_auth.go -package=mocks Mailer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/core/mocks"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/platform/token"
)

type AuthServiceSuite struct {
	suite.Suite
	h       *harness
	ctrl    *gomock.Controller
	mailer  *mocks.MockMailer
	revoker *token.MemoryRevoker
	svc     core.AuthService
	codes   map[string]string
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.h = newHarness(s.T())
	s.ctrl = gomock.NewController(s.T())
	s.mailer = mocks.NewMockMailer(s.ctrl)
	s.revoker = token.NewMemoryRevoker()
	s.codes = map[string]string{}
	s.svc = core.NewAuthService(core.AuthDeps{
		Users:   s.h.store.Users,
		OTPs:    s.h.store.OTPs,
		Tokens:  token.NewJWTService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour),
		Revoker: s.revoker,
		Mailer:  s.mailer,
		Log:     logging.Discard(),
	}, core.WithClock(s.h.clock), core.WithBcryptCost(bcrypt.MinCost))
}

// expectOTP captures the code mailed to email.
func (s *AuthServiceSuite) expectOTP(email string, purpose core.OTPPurpose) {
	s.mailer.EXPECT().
		SendOTP(gomock.Any(), email, purpose, gomock.Any()).
		DoAndReturn(func(_ context.Context, to string, _ core.OTPPurpose, code string) error {
			s.codes[to] = code
			return nil
		})
}

func (s *AuthServiceSuite) register(name, email, password string) core.User {
	s.expectOTP(email, core.OTPPurposeRegister)
	s.Require().NoError(s.svc.RequestRegisterOTP(s.h.ctx, email))
	u, err := s.svc.Register(s.h.ctx, core.RegisterInput{Name: name, Email: email, Password: password, Code: s.codes[email]})
	s.Require().NoError(err)
	return u
}

func (s *AuthServiceSuite) TestRegister() {
	s.Run("verified code creates a bronze customer", func() {
		u := s.register("  Nguyễn An ", "An@Example.vn", "secret1")
		s.Equal("Nguyễn An", u.Name)
		s.Equal("an@example.vn", u.Email)
		s.Equal(core.RoleCustomer, u.Role)
		s.Equal(core.TierBronze, u.Loyalty.Tier)
		s.True(u.IsActive)
	})

	s.Run("taken email gets no code", func() {
		err := s.svc.RequestRegisterOTP(s.h.ctx, "an@example.vn")
		s.ErrorIs(err, core.ErrEmailTaken)
	})

	s.Run("wrong code counts an attempt", func() {
		s.expectOTP("binh@example.vn", core.OTPPurposeRegister)
		s.Require().NoError(s.svc.RequestRegisterOTP(s.h.ctx, "binh@example.vn"))

		wrong := "000000"
		if s.codes["binh@example.vn"] == wrong {
			wrong = "111111"
		}
		_, err := s.svc.Register(s.h.ctx, core.RegisterInput{Name: "Bình", Email: "binh@example.vn", Password: "secret1", Code: wrong})
		s.ErrorIs(err, core.ErrOTPInvalid)

		otp, err := s.h.store.OTPs.GetLatest(s.h.ctx, "binh@example.vn", core.OTPPurposeRegister)
		s.Require().NoError(err)
		s.Equal(1, otp.Attempts)
	})

	s.Run("expired code is rejected", func() {
		s.expectOTP("chi@example.vn", core.OTPPurposeRegister)
		s.Require().NoError(s.svc.RequestRegisterOTP(s.h.ctx, "chi@example.vn"))
		s.h.advance(11 * time.Minute)

		_, err := s.svc.Register(s.h.ctx, core.RegisterInput{Name: "Chi", Email: "chi@example.vn", Password: "secret1", Code: s.codes["chi@example.vn"]})
		s.ErrorIs(err, core.ErrOTPExpired)
	})

	s.Run("code without a request", func() {
		_, err := s.svc.Register(s.h.ctx, core.RegisterInput{Name: "Dũng", Email: "dung@example.vn", Password: "secret1", Code: "123456"})
		s.ErrorIs(err, core.ErrOTPNotFound)
	})

	s.Run("short password", func() {
		_, err := s.svc.Register(s.h.ctx, core.RegisterInput{Name: "Em", Email: "em@example.vn", Password: "123", Code: "123456"})
		s.ErrorIs(err, core.ErrValidation)
	})
}

func (s *AuthServiceSuite) TestLoginAndTokens() {
	s.register("Giang", "giang@example.vn", "secret1")

	s.Run("bad password", func() {
		_, err := s.svc.Login(s.h.ctx, core.LoginInput{Email: "giang@example.vn", Password: "nope123"})
		s.ErrorIs(err, core.ErrInvalidCredentials)
	})

	s.Run("unknown email looks like a bad password", func() {
		_, err := s.svc.Login(s.h.ctx, core.LoginInput{Email: "ghost@example.vn", Password: "secret1"})
		s.ErrorIs(err, core.ErrInvalidCredentials)
	})

	s.Run("refresh rotates the token", func() {
		res, err := s.svc.Login(s.h.ctx, core.LoginInput{Email: "GIANG@example.vn", Password: "secret1"})
		s.Require().NoError(err)
		s.NotEmpty(res.Token)
		s.NotEmpty(res.RefreshToken)

		next, err := s.svc.Refresh(s.h.ctx, res.RefreshToken)
		s.Require().NoError(err)
		s.NotEqual(res.RefreshToken, next.RefreshToken)

		_, err = s.svc.Refresh(s.h.ctx, res.RefreshToken)
		s.ErrorIs(err, core.ErrTokenRevoked)
	})

	s.Run("access token is not a refresh token", func() {
		res, err := s.svc.Login(s.h.ctx, core.LoginInput{Email: "giang@example.vn", Password: "secret1"})
		s.Require().NoError(err)
		_, err = s.svc.Refresh(s.h.ctx, res.Token)
		s.ErrorIs(err, core.ErrInvalidToken)
	})

	s.Run("logout revokes both tokens", func() {
		tokens := token.NewJWTService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
		res, err := s.svc.Login(s.h.ctx, core.LoginInput{Email: "giang@example.vn", Password: "secret1"})
		s.Require().NoError(err)
		access, err := tokens.ParseAccess(res.Token)
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Logout(s.h.ctx, access, res.RefreshToken))

		revoked, err := s.revoker.IsRevoked(s.h.ctx, access.JTI)
		s.Require().NoError(err)
		s.True(revoked)
		_, err = s.svc.Refresh(s.h.ctx, res.RefreshToken)
		s.ErrorIs(err, core.ErrTokenRevoked)
	})

	s.Run("disabled accounts cannot log in", func() {
		u, err := s.h.store.Users.GetByEmail(s.h.ctx, "giang@example.vn")
		s.Require().NoError(err)
		s.Require().NoError(s.h.store.Users.SetActive(s.h.ctx, u.ID, false, s.h.now))

		_, err = s.svc.Login(s.h.ctx, core.LoginInput{Email: "giang@example.vn", Password: "secret1"})
		s.ErrorIs(err, core.ErrAccountDisabled)
	})
}

func (s *AuthServiceSuite) TestPasswords() {
	u := s.register("Hà", "ha@example.vn", "secret1")

	s.Run("reset with a mailed code", func() {
		s.expectOTP("ha@example.vn", core.OTPPurposeReset)
		s.Require().NoError(s.svc.RequestPasswordReset(s.h.ctx, "ha@example.vn"))

		err := s.svc.ResetPassword(s.h.ctx, core.ResetPasswordInput{Email: "ha@example.vn", Code: s.codes["ha@example.vn"], NewPassword: "newpass1"})
		s.Require().NoError(err)

		_, err = s.svc.Login(s.h.ctx, core.LoginInput{Email: "ha@example.vn", Password: "newpass1"})
		s.NoError(err)
	})

	s.Run("codes are single use", func() {
		err := s.svc.ResetPassword(s.h.ctx, core.ResetPasswordInput{Email: "ha@example.vn", Code: s.codes["ha@example.vn"], NewPassword: "again12"})
		s.ErrorIs(err, core.ErrOTPNotFound)
	})

	s.Run("reset for an unknown email", func() {
		err := s.svc.RequestPasswordReset(s.h.ctx, "nobody@example.vn")
		s.ErrorIs(err, core.ErrEmailNotFound)
	})

	s.Run("change needs the current password", func() {
		err := s.svc.ChangePassword(s.h.ctx, u.ID, core.ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "other12"})
		s.ErrorIs(err, core.ErrWrongPassword)

		err = s.svc.ChangePassword(s.h.ctx, u.ID, core.ChangePasswordInput{CurrentPassword: "newpass1", NewPassword: "other12"})
		s.NoError(err)
	})

	s.Run("mailer failure drops the code", func() {
		s.mailer.EXPECT().SendOTP(gomock.Any(), "ha@example.vn", core.OTPPurposeReset, gomock.Any()).Return(core.ErrUnavailable)

		err := s.svc.RequestPasswordReset(s.h.ctx, "ha@example.vn")
		s.ErrorIs(err, core.ErrUnavailable)
		_, err = s.h.store.OTPs.GetLatest(s.h.ctx, "ha@example.vn", core.OTPPurposeReset)
		s.ErrorIs(err, core.ErrNotFound)
	})
}

func (s *AuthServiceSuite) TestOTPCleanupFailureIsLogged() {
	var logs bytes.Buffer
	otps := stickyOTPs{OTPRepo: s.h.store.OTPs}
	svc := core.NewAuthService(core.AuthDeps{
		Users:   s.h.store.Users,
		OTPs:    otps,
		Tokens:  token.NewJWTService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour),
		Revoker: s.revoker,
		Mailer:  s.mailer,
		Log:     slog.New(slog.NewTextHandler(&logs, nil)),
	}, core.WithClock(s.h.clock), core.WithBcryptCost(bcrypt.MinCost))

	s.mailer.EXPECT().SendOTP(gomock.Any(), "long@example.vn", core.OTPPurposeRegister, gomock.Any()).Return(core.ErrUnavailable)

	err := svc.RequestRegisterOTP(s.h.ctx, "long@example.vn")
	s.ErrorIs(err, core.ErrUnavailable)
	s.Contains(logs.String(), "level=WARN")
	s.Contains(logs.String(), "delete otp failed")
}

// stickyOTPs refuses deletes.
type stickyOTPs struct {
	core.OTPRepo
}

func (stickyOTPs) Delete(context.Context, string) error {
	return errors.New("otp store offline")
}

func (s *AuthServiceSuite) TestProfile() {
	u := s.register("Khoa", "khoa@example.vn", "secret1")

	s.Run("patch keeps loyalty", func() {
		_, err := s.h.store.Users.AdjustPoints(s.h.ctx, u.ID, 40)
		s.Require().NoError(err)

		name := "Khoa Trần"
		phone := "0912345678"
		got, err := s.svc.UpdateProfile(s.h.ctx, u.ID, core.ProfilePatch{Name: &name, Phone: &phone})
		s.Require().NoError(err)
		s.Equal("Khoa Trần", got.Name)
		s.Equal("0912345678", got.Phone)

		me, err := s.svc.Me(s.h.ctx, u.ID)
		s.Require().NoError(err)
		s.EqualValues(40, me.Loyalty.Balance)
	})

	s.Run("admin accounts skip the code", func() {
		admin, err := s.svc.CreateAdmin(s.h.ctx, "Quản trị", "admin@uteshop.vn", "admin123")
		s.Require().NoError(err)
		s.Equal(core.RoleAdmin, admin.Role)

		_, err = s.svc.CreateAdmin(s.h.ctx, "Again", "admin@uteshop.vn", "admin123")
		s.ErrorIs(err, core.ErrEmailTaken)
	})
}
