package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
)

const DefaultTwilioURL = "https://api.twilio.com"

type SMSConfig struct {
	AccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	PhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`
	AdminPhone  string `envconfig:"ADMIN_PHONE"`
	BaseURL     string `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
}

func (c SMSConfig) Configured() bool {
	return strings.TrimSpace(c.AccountSID) != "" &&
		strings.TrimSpace(c.AuthToken) != "" &&
		strings.TrimSpace(c.PhoneNumber) != ""
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SMS sends the confirmation to ADMIN_PHONE through the Twilio messages API.
type SMS struct {
	cfg  SMSConfig
	http *resty.Client
	log  zerolog.Logger
}

func NewSMS(cfg SMSConfig) *SMS {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultTwilioURL
	}
	return &SMS{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(10*time.Second).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken),
		log: logx.Component("notify.sms"),
	}
}

func (s *SMS) Channel() string { return "sms" }

func (s *SMS) Notify(ctx context.Context, b bookingapi.Booking) error {
	to := strings.TrimSpace(s.cfg.AdminPhone)
	body := smsBody(b)
	if to == "" {
		s.log.Debug().Msg("no admin phone, skipping sms")
		return nil
	}
	if !s.cfg.Configured() {
		s.log.Warn().Str("to", to).Str("body", body).Msg("twilio credentials missing, mock send")
		return nil
	}

	var apiErr twilioError
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("sid", s.cfg.AccountSID).
		SetFormData(map[string]string{
			"To":   to,
			"From": s.cfg.PhoneNumber,
			"Body": body,
		}).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send sms: twilio status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}
