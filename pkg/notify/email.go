package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
)

type EmailConfig struct {
	User     string `envconfig:"EMAIL_USER"`
	Pass     string `envconfig:"EMAIL_PASS"`
	SMTPHost string `envconfig:"EMAIL_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort string `envconfig:"EMAIL_SMTP_PORT" default:"587"`
	To       string `envconfig:"EMAIL_TO"`
}

func (c EmailConfig) Configured() bool {
	return strings.TrimSpace(c.User) != "" && strings.TrimSpace(c.Pass) != ""
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends the confirmation from EMAIL_USER to EMAIL_TO, or to the sender
// itself when no recipient is set.
type Email struct {
	cfg  EmailConfig
	send sendMailFunc
	log  zerolog.Logger
}

func NewEmail(cfg EmailConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail, log: logx.Component("notify.email")}
}

func (e *Email) Channel() string { return "email" }

func (e *Email) Notify(ctx context.Context, b bookingapi.Booking) error {
	subject, text := emailBody(b)
	to := strings.TrimSpace(e.cfg.To)
	if to == "" {
		to = e.cfg.User
	}

	if !e.cfg.Configured() {
		e.log.Warn().Str("to", to).Str("subject", subject).Str("body", text).Msg("email credentials missing, mock send")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + e.cfg.User,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		text,
	}, "\r\n")

	addr := net.JoinHostPort(e.cfg.SMTPHost, e.cfg.SMTPPort)
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, e.cfg.SMTPHost)
	if err := e.send(addr, auth, e.cfg.User, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
