// Package backend is the agent's HTTP client for the booking server.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

const DefaultServerURL = "http://localhost:3001"

var (
	ErrSlotTaken = errors.New("booking slot taken")
	ErrNotFound  = errors.New("booking not found")
	ErrUpstream  = errors.New("booking server error")
)

type Config struct {
	URL     string        `envconfig:"SERVER_URL" default:"http://localhost:3001"`
	Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"10s"`
}

// APIError is a non-2xx reply from the booking server. Reason returns the
// server's message so tools can repeat it to the user.
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.kind, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error  { return e.kind }
func (e *APIError) Reason() string { return e.Message }

type Client struct {
	http *resty.Client
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = DefaultServerURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "voice-booking-agent/1.0"),
	}
}

func (c *Client) ListBookings(ctx context.Context) ([]bookingapi.Booking, error) {
	var out []bookingapi.Booking
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&bookingapi.ErrorResponse{}).
		Get("/api/bookings")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (bookingapi.Booking, error) {
	var out bookingapi.Booking
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&bookingapi.ErrorResponse{}).
		Get("/api/bookings/{id}")
	if err := check(resp, err); err != nil {
		return bookingapi.Booking{}, err
	}
	return out, nil
}

func (c *Client) CreateBooking(ctx context.Context, draft bookingapi.Draft) (bookingapi.Booking, error) {
	var out bookingapi.Booking
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(draft).
		SetResult(&out).
		SetError(&bookingapi.ErrorResponse{}).
		Post("/api/bookings")
	if err := check(resp, err); err != nil {
		return bookingapi.Booking{}, err
	}
	return out, nil
}

func (c *Client) CancelBooking(ctx context.Context, id string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetError(&bookingapi.ErrorResponse{}).
		Delete("/api/bookings/{id}")
	return check(resp, err)
}

func (c *Client) Weather(ctx context.Context, location, date string) (bookingapi.Weather, error) {
	var out bookingapi.Weather
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"location": location, "date": date}).
		SetResult(&out).
		SetError(&bookingapi.ErrorResponse{}).
		Get("/api/weather")
	if err := check(resp, err); err != nil {
		return bookingapi.Weather{}, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode(), kind: ErrUpstream}
	if body, ok := resp.Error().(*bookingapi.ErrorResponse); ok && body != nil {
		apiErr.Message = body.Message
	}
	switch resp.StatusCode() {
	case http.StatusConflict:
		apiErr.kind = ErrSlotTaken
	case http.StatusNotFound:
		apiErr.kind = ErrNotFound
	}
	return apiErr
}
