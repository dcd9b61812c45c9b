package tool

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

const (
	ToolGetWeather        = "getWeather"
	ToolCheckAvailability = "checkAvailability"
	ToolCreateBooking     = "createBooking"

	msgSlotAvailable = "Slot available"
	msgCheckFailed   = "Slot available (check failed)"
	msgWeatherFailed = "Failed to fetch weather"
	msgBookingFailed = "Failed to create booking"
	weatherUnknown   = "unknown"
)

type WeatherLookup interface {
	Weather(ctx context.Context, location, date string) (bookingapi.Weather, error)
}

type BookingDirectory interface {
	ListBookings(ctx context.Context) ([]bookingapi.Booking, error)
	CreateBooking(ctx context.Context, draft bookingapi.Draft) (bookingapi.Booking, error)
}

// reasoner is implemented by collaborator errors that carry a message meant
// for the caller, such as a 409 body.
type reasoner interface {
	Reason() string
}

type Availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type BookingOutcome struct {
	Success bool                `json:"success"`
	Booking *bookingapi.Booking `json:"booking,omitempty"`
	Message string              `json:"message,omitempty"`
}

type weatherArgs struct {
	Location string `json:"location" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

// GetWeather is advisory: a collaborator failure yields an "unknown" forecast
// instead of an error.
func GetWeather(svc WeatherLookup) Tool {
	spec := contractx.ToolSpec{
		Name:        ToolGetWeather,
		Description: "Get the weather forecast for a location on a given date. Use it whenever the user mentions a date.",
		Params: map[string]*contractx.ParamSpec{
			"location": {Type: contractx.ParamString, Desc: "City name, e.g. New York", Required: true},
			"date":     {Type: contractx.ParamString, Desc: "Date in YYYY-MM-DD format", Required: true},
		},
	}
	return Typed(spec, func(ctx context.Context, args weatherArgs) (any, error) {
		w, err := svc.Weather(ctx, args.Location, bookingapi.NormalizeDate(args.Date))
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolGetWeather).Str("location", args.Location).Msg("weather lookup failed")
			return bookingapi.Weather{Condition: weatherUnknown, Temperature: 0, Error: msgWeatherFailed}, nil
		}
		return w, nil
	})
}

type availabilityArgs struct {
	Date string `json:"date" validate:"required"`
	Time string `json:"time" validate:"required"`
}

// CheckAvailability fails open: if the booking list cannot be fetched the
// slot is reported available.
func CheckAvailability(dir BookingDirectory) Tool {
	spec := contractx.ToolSpec{
		Name:        ToolCheckAvailability,
		Description: "Check if a table is available for a specific date and time before confirming a booking.",
		Params: map[string]*contractx.ParamSpec{
			"date": {Type: contractx.ParamString, Desc: "Date in YYYY-MM-DD format", Required: true},
			"time": {Type: contractx.ParamString, Desc: "Time in HH:MM format", Required: true},
		},
	}
	return Typed(spec, func(ctx context.Context, args availabilityArgs) (any, error) {
		bookings, err := dir.ListBookings(ctx)
		if err != nil {
			log.Warn().Err(err).Str("tool", ToolCheckAvailability).Msg("booking list unavailable, assuming slot is free")
			return Availability{Available: true, Message: msgCheckFailed}, nil
		}
		for _, b := range bookings {
			if b.SameSlot(args.Date, args.Time) {
				return Availability{Available: false, Message: bookingapi.MessageSlotTaken}, nil
			}
		}
		return Availability{Available: true, Message: msgSlotAvailable}, nil
	})
}

type bookingArgs struct {
	CustomerName      string         `json:"customerName" validate:"required"`
	NumberOfGuests    int            `json:"numberOfGuests" validate:"required,min=1,max=50"`
	BookingDate       string         `json:"bookingDate" validate:"required"`
	BookingTime       string         `json:"bookingTime" validate:"required"`
	CuisinePreference string         `json:"cuisinePreference"`
	SpecialRequests   string         `json:"specialRequests"`
	WeatherInfo       map[string]any `json:"weatherInfo"`
	SeatingPreference string         `json:"seatingPreference"`
	Language          string         `json:"language"`
}

// CreateBooking normalizes the draft and forwards it. Rejections come back as
// {success:false, message}.
func CreateBooking(dir BookingDirectory) Tool {
	spec := contractx.ToolSpec{
		Name:        ToolCreateBooking,
		Description: "Create a new restaurant booking once all details are collected and the slot is available.",
		Params: map[string]*contractx.ParamSpec{
			"customerName":      {Type: contractx.ParamString, Desc: "Name of the guest", Required: true},
			"numberOfGuests":    {Type: contractx.ParamInteger, Desc: "Number of guests", Required: true},
			"bookingDate":       {Type: contractx.ParamString, Desc: "Date in YYYY-MM-DD format", Required: true},
			"bookingTime":       {Type: contractx.ParamString, Desc: "Time in HH:MM format", Required: true},
			"cuisinePreference": {Type: contractx.ParamString, Desc: "Preferred cuisine"},
			"specialRequests":   {Type: contractx.ParamString, Desc: "Special requests such as allergies or occasions"},
			"weatherInfo":       {Type: contractx.ParamObject, Desc: "Weather forecast returned by getWeather"},
			"seatingPreference": {Type: contractx.ParamString, Desc: "Indoor, Outdoor or Any"},
			"language":          {Type: contractx.ParamString, Desc: "Language of the conversation, e.g. en or hi"},
		},
	}
	return Typed(spec, func(ctx context.Context, args bookingArgs) (any, error) {
		draft := bookingapi.Draft{
			CustomerName:      args.CustomerName,
			NumberOfGuests:    args.NumberOfGuests,
			BookingDate:       bookingapi.NormalizeDate(args.BookingDate),
			BookingTime:       bookingapi.NormalizeTime(args.BookingTime),
			CuisinePreference: args.CuisinePreference,
			SpecialRequests:   args.SpecialRequests,
			WeatherInfo:       args.WeatherInfo,
			SeatingPreference: bookingapi.NormalizeSeating(args.SeatingPreference),
			Language:          args.Language,
		}

		booking, err := dir.CreateBooking(ctx, draft)
		if err != nil {
			msg := msgBookingFailed
			var r reasoner
			if errors.As(err, &r) && r.Reason() != "" {
				msg = r.Reason()
			}
			log.Warn().Err(err).Str("tool", ToolCreateBooking).Msg("booking rejected")
			return BookingOutcome{Success: false, Message: msg}, nil
		}
		return BookingOutcome{Success: true, Booking: &booking}, nil
	})
}

// NewCatalog registers the booking assistant's tools.
func NewCatalog(weather WeatherLookup, bookings BookingDirectory, opts ...Option) (*Registry, error) {
	r := NewRegistry(opts...)
	for _, t := range []Tool{
		GetWeather(weather),
		CheckAvailability(bookings),
		CreateBooking(bookings),
	} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
