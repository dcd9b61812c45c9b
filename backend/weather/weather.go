// Package weather looks up current conditions on OpenWeatherMap.
package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"

	conditionUnknown = "unknown"
	placeholderKey   = "your_weather_key"
)

type Config struct {
	APIKey  string        `envconfig:"OPENWEATHER_API_KEY"`
	BaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org"`
	Timeout time.Duration `envconfig:"OPENWEATHER_TIMEOUT" default:"10s"`
}

func (c Config) Configured() bool {
	key := strings.TrimSpace(c.APIKey)
	return key != "" && key != placeholderKey
}

type owmResponse struct {
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
}

type owmError struct {
	Message string `json:"message"`
}

// Service never fails: without a key it returns mock data, and upstream
// errors become an "unknown" reading carrying the error text.
type Service struct {
	cfg  Config
	http *resty.Client
	log  zerolog.Logger
}

func New(cfg Config) *Service {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		cfg:  cfg,
		http: resty.New().SetBaseURL(base).SetTimeout(timeout),
		log:  logx.Component("weather"),
	}
}

// Lookup returns current conditions for location. The free API has no
// forecast for arbitrary dates, so date is only logged.
func (s *Service) Lookup(ctx context.Context, location, date string) bookingapi.Weather {
	s.log.Debug().Str("location", location).Str("date", date).Msg("weather lookup")

	if !s.cfg.Configured() {
		s.log.Warn().Msg("missing weather api key, returning mock data")
		return bookingapi.Weather{Condition: "sunny", Temperature: 25, Note: "Mock Data"}
	}

	w, err := s.current(ctx, location)
	if err != nil {
		s.log.Error().Err(err).Str("location", location).Msg("weather api error")
		return bookingapi.Weather{Condition: conditionUnknown, Temperature: 0, Error: err.Error()}
	}
	return w
}

func (s *Service) current(ctx context.Context, location string) (bookingapi.Weather, error) {
	var (
		out    owmResponse
		apiErr owmError
	)
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     location,
			"appid": s.cfg.APIKey,
			"units": "metric",
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/data/2.5/weather")
	if err != nil {
		return bookingapi.Weather{}, err
	}
	if resp.IsError() {
		return bookingapi.Weather{}, fmt.Errorf("status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	if len(out.Weather) == 0 {
		return bookingapi.Weather{}, errors.New("response has no weather entries")
	}
	return bookingapi.Weather{
		Condition:   strings.ToLower(out.Weather[0].Main),
		Temperature: out.Main.Temp,
	}, nil
}
