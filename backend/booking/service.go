package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const (
	defaultPreference = "None"
	defaultLanguage   = "en"
)

// Dispatcher is notified after a booking is stored. It must not block.
type Dispatcher interface {
	Dispatch(b bookingapi.Booking)
}

type Service struct {
	store  Store
	notify Dispatcher
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
}

type Option func(*Service)

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.notify = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		newID: newBookingID,
		log:   logx.Component("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newBookingID() string {
	return "bk_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

func (s *Service) List(ctx context.Context) ([]bookingapi.Booking, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (bookingapi.Booking, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// Create validates and normalises draft, stores it as a confirmed booking and
// dispatches notifications.
func (s *Service) Create(ctx context.Context, draft bookingapi.Draft) (bookingapi.Booking, error) {
	b, err := s.fromDraft(draft)
	if err != nil {
		metrics.Bookings.WithLabelValues("invalid").Inc()
		return bookingapi.Booking{}, err
	}

	if err := s.store.Insert(ctx, b); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			metrics.Bookings.WithLabelValues("conflict").Inc()
			s.log.Info().Str("date", b.BookingDate).Str("time", b.BookingTime).Msg("slot already booked")
			return bookingapi.Booking{}, err
		}
		metrics.Bookings.WithLabelValues("failed").Inc()
		return bookingapi.Booking{}, err
	}

	metrics.Bookings.WithLabelValues("created").Inc()
	s.log.Info().
		Str("booking", b.BookingID).
		Str("date", b.BookingDate).
		Str("time", b.BookingTime).
		Int("guests", b.NumberOfGuests).
		Msg("booking created")

	if s.notify != nil {
		s.notify.Dispatch(b)
	}
	return b, nil
}

// Cancel marks the booking cancelled, which frees its slot.
func (s *Service) Cancel(ctx context.Context, id string) (bookingapi.Booking, error) {
	b, err := s.store.Cancel(ctx, strings.TrimSpace(id))
	if err != nil {
		return bookingapi.Booking{}, err
	}
	s.log.Info().Str("booking", b.BookingID).Msg("booking cancelled")
	return b, nil
}

func (s *Service) fromDraft(d bookingapi.Draft) (bookingapi.Booking, error) {
	name := strings.TrimSpace(d.CustomerName)
	if name == "" {
		return bookingapi.Booking{}, fmt.Errorf("%w: customerName is required", ErrInvalid)
	}
	if d.NumberOfGuests < 1 {
		return bookingapi.Booking{}, fmt.Errorf("%w: numberOfGuests must be at least 1", ErrInvalid)
	}
	date := bookingapi.NormalizeDate(d.BookingDate)
	if _, err := time.Parse(bookingapi.DateLayout, date); err != nil {
		return bookingapi.Booking{}, fmt.Errorf("%w: bookingDate %q is not a date", ErrInvalid, d.BookingDate)
	}
	clock := bookingapi.NormalizeTime(d.BookingTime)
	if clock == "" {
		return bookingapi.Booking{}, fmt.Errorf("%w: bookingTime is required", ErrInvalid)
	}

	weather := d.WeatherInfo
	if weather == nil {
		weather = map[string]any{}
	}
	return bookingapi.Booking{
		BookingID:         s.newID(),
		CustomerName:      name,
		NumberOfGuests:    d.NumberOfGuests,
		BookingDate:       date,
		BookingTime:       clock,
		CuisinePreference: orDefault(d.CuisinePreference, defaultPreference),
		SpecialRequests:   orDefault(d.SpecialRequests, defaultPreference),
		WeatherInfo:       weather,
		SeatingPreference: bookingapi.NormalizeSeating(d.SeatingPreference),
		Status:            bookingapi.StatusConfirmed,
		Language:          orDefault(d.Language, defaultLanguage),
		CreatedAt:         s.now().UTC(),
	}, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
