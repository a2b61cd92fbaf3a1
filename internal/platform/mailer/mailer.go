// Package mailer sends transactional email.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/uteshop/uteshop-api/internal/core"
)

//go:embed templates/*.html
var templateFS embed.FS

var otpTemplate = template.Must(template.ParseFS(templateFS, "templates/otp.html"))

// codeValidMinutes matches how long the auth service keeps a code.
const codeValidMinutes = 10

var titles = map[core.OTPPurpose]string{
	core.OTPPurposeRegister: "Xác thực đăng ký",
	core.OTPPurposeReset:    "Đặt lại mật khẩu",
}

func title(p core.OTPPurpose) string {
	if t, ok := titles[p]; ok {
		return t
	}
	return "Xác thực tài khoản"
}

// Subject is the mail subject for an OTP of purpose p.
func Subject(p core.OTPPurpose) string {
	return title(p) + " – Mã OTP"
}

func renderOTP(p core.OTPPurpose, code string) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Title        string
		Code         string
		ValidMinutes int
	}{title(p), code, codeValidMinutes})
	if err != nil {
		return "", fmt.Errorf("render otp mail: %w", err)
	}
	return buf.String(), nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP delivers mail through an SMTP relay.
type SMTP struct {
	from string
	send func(*gomail.Message) error
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTP{from: cfg.From, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}
}

var _ core.Mailer = (*SMTP)(nil)

func (s *SMTP) SendOTP(ctx context.Context, to string, purpose core.OTPPurpose, code string) error {
	body, err := renderOTP(purpose, code)
	if err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", Subject(purpose))
	m.SetBody("text/html", body)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(m); err != nil {
		return fmt.Errorf("%w: send mail: %v", core.ErrUnavailable, err)
	}
	return nil
}

// Log writes codes to the log instead of sending them. Development only.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

var _ core.Mailer = (*Log)(nil)

func (l *Log) SendOTP(ctx context.Context, to string, purpose core.OTPPurpose, code string) error {
	l.log.InfoContext(ctx, "otp mail (not sent)", "to", to, "subject", Subject(purpose), "code", code)
	return nil
}
