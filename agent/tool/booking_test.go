package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

type stubWeather struct {
	weather bookingapi.Weather
	err     error
	gotDate string
}

func (s *stubWeather) Weather(_ context.Context, _ string, date string) (bookingapi.Weather, error) {
	s.gotDate = date
	return s.weather, s.err
}

type rejection struct{ msg string }

func (r rejection) Error() string  { return "status 409: " + r.msg }
func (r rejection) Reason() string { return r.msg }

type stubDirectory struct {
	bookings  []bookingapi.Booking
	listErr   error
	createErr error
	drafts    []bookingapi.Draft
}

func (s *stubDirectory) ListBookings(context.Context) ([]bookingapi.Booking, error) {
	return s.bookings, s.listErr
}

func (s *stubDirectory) CreateBooking(_ context.Context, d bookingapi.Draft) (bookingapi.Booking, error) {
	s.drafts = append(s.drafts, d)
	if s.createErr != nil {
		return bookingapi.Booking{}, s.createErr
	}
	return bookingapi.Booking{
		BookingID:         "bk_1",
		CustomerName:      d.CustomerName,
		NumberOfGuests:    d.NumberOfGuests,
		BookingDate:       d.BookingDate,
		BookingTime:       d.BookingTime,
		SeatingPreference: d.SeatingPreference,
		Status:            bookingapi.StatusConfirmed,
	}, nil
}

func invokeJSON(t *testing.T, r *Registry, name, args string) map[string]any {
	t.Helper()
	res := r.Invoke(context.Background(), contractx.ToolCall{ID: "c1", Name: name, Arguments: args})
	if res.Failed() {
		t.Fatalf("%s failed: %s", name, res.Error)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Payload()), &out); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return out
}

func TestGetWeatherReturnsForecast(t *testing.T) {
	t.Parallel()

	w := &stubWeather{weather: bookingapi.Weather{Condition: "sunny", Temperature: 25}}
	r, _ := NewCatalog(w, &stubDirectory{})

	out := invokeJSON(t, r, ToolGetWeather, `{"location":"New York","date":"2026-10-19T00:00:00Z"}`)
	if out["condition"] != "sunny" || out["temperature"] != float64(25) {
		t.Fatalf("weather = %v", out)
	}
	if w.gotDate != "2026-10-19" {
		t.Fatalf("date forwarded = %q", w.gotDate)
	}
}

func TestGetWeatherFailsSoft(t *testing.T) {
	t.Parallel()

	r, _ := NewCatalog(&stubWeather{err: errors.New("dial tcp: connection refused")}, &stubDirectory{})

	out := invokeJSON(t, r, ToolGetWeather, `{"location":"Paris","date":"2026-10-19"}`)
	if out["condition"] != "unknown" || out["temperature"] != float64(0) || out["error"] == nil {
		t.Fatalf("weather = %v", out)
	}
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{bookings: []bookingapi.Booking{
		{BookingDate: "2026-10-19", BookingTime: "19:00", Status: bookingapi.StatusConfirmed},
		{BookingDate: "2026-10-19", BookingTime: "20:00", Status: bookingapi.StatusCancelled},
	}}
	r, _ := NewCatalog(&stubWeather{}, dir)

	taken := invokeJSON(t, r, ToolCheckAvailability, `{"date":"2026-10-19","time":"7pm"}`)
	if taken["available"] != false || taken["message"] != "Time slot already booked" {
		t.Fatalf("taken slot = %v", taken)
	}

	free := invokeJSON(t, r, ToolCheckAvailability, `{"date":"2026-10-19","time":"20:00"}`)
	if free["available"] != true || free["message"] != "Slot available" {
		t.Fatalf("cancelled slot = %v", free)
	}
}

func TestCheckAvailabilityFailsOpen(t *testing.T) {
	t.Parallel()

	r, _ := NewCatalog(&stubWeather{}, &stubDirectory{listErr: errors.New("timeout")})

	out := invokeJSON(t, r, ToolCheckAvailability, `{"date":"2026-10-19","time":"19:00"}`)
	if out["available"] != true || out["message"] != "Slot available (check failed)" {
		t.Fatalf("availability = %v", out)
	}
}

func TestCreateBookingNormalizesDraft(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{}
	r, _ := NewCatalog(&stubWeather{}, dir)

	out := invokeJSON(t, r, ToolCreateBooking, `{
		"customerName":"Asha","numberOfGuests":2,"bookingDate":"2026-10-19",
		"bookingTime":"7:30 PM","seatingPreference":"Outdoor",
		"weatherInfo":{"condition":"sunny","temperature":25}
	}`)
	if out["success"] != true {
		t.Fatalf("outcome = %v", out)
	}
	if len(dir.drafts) != 1 {
		t.Fatalf("drafts = %d", len(dir.drafts))
	}
	d := dir.drafts[0]
	if d.SeatingPreference != "outdoor" || d.BookingTime != "19:30" || d.WeatherInfo["condition"] != "sunny" {
		t.Fatalf("draft = %#v", d)
	}
}

func TestCreateBookingRejected(t *testing.T) {
	t.Parallel()

	r, _ := NewCatalog(&stubWeather{}, &stubDirectory{createErr: rejection{msg: "Time slot already booked"}})
	out := invokeJSON(t, r, ToolCreateBooking, `{"customerName":"A","numberOfGuests":2,"bookingDate":"2026-10-19","bookingTime":"19:00"}`)
	if out["success"] != false || out["message"] != "Time slot already booked" {
		t.Fatalf("outcome = %v", out)
	}

	r, _ = NewCatalog(&stubWeather{}, &stubDirectory{createErr: errors.New("EOF")})
	out = invokeJSON(t, r, ToolCreateBooking, `{"customerName":"A","numberOfGuests":2,"bookingDate":"2026-10-19","bookingTime":"19:00"}`)
	if out["message"] != "Failed to create booking" {
		t.Fatalf("outcome = %v", out)
	}
}

func TestCreateBookingRejectsZeroGuests(t *testing.T) {
	t.Parallel()

	dir := &stubDirectory{}
	r, _ := NewCatalog(&stubWeather{}, dir)
	res := r.Invoke(context.Background(), contractx.ToolCall{ID: "c", Name: ToolCreateBooking,
		Arguments: `{"customerName":"A","numberOfGuests":0,"bookingDate":"2026-10-19","bookingTime":"19:00"}`})
	if res.Code != contractx.CodeInvalidArguments {
		t.Fatalf("Code = %q", res.Code)
	}
	if len(dir.drafts) != 0 {
		t.Fatal("draft forwarded despite invalid arguments")
	}
}
