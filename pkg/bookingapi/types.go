// Package bookingapi holds the wire types shared by the booking backend and
// the agent's collaborator client.
package bookingapi

import (
	"strings"
	"time"
	"unicode"
)

const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"

	SeatingIndoor  = "indoor"
	SeatingOutdoor = "outdoor"
	SeatingAny     = "any"

	MessageSlotTaken = "Time slot already booked"
	MessageNotFound  = "Booking not found"

	DateLayout = "2006-01-02"
)

type Weather struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	Note        string  `json:"note,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// Draft is the booking request assembled by the assistant across tool calls.
type Draft struct {
	CustomerName      string         `json:"customerName"`
	NumberOfGuests    int            `json:"numberOfGuests"`
	BookingDate       string         `json:"bookingDate"`
	BookingTime       string         `json:"bookingTime"`
	CuisinePreference string         `json:"cuisinePreference,omitempty"`
	SpecialRequests   string         `json:"specialRequests,omitempty"`
	WeatherInfo       map[string]any `json:"weatherInfo,omitempty"`
	SeatingPreference string         `json:"seatingPreference,omitempty"`
	Language          string         `json:"language,omitempty"`
}

type Booking struct {
	BookingID         string         `json:"bookingId"`
	CustomerName      string         `json:"customerName"`
	NumberOfGuests    int            `json:"numberOfGuests"`
	BookingDate       string         `json:"bookingDate"`
	BookingTime       string         `json:"bookingTime"`
	CuisinePreference string         `json:"cuisinePreference"`
	SpecialRequests   string         `json:"specialRequests"`
	WeatherInfo       map[string]any `json:"weatherInfo"`
	SeatingPreference string         `json:"seatingPreference"`
	Status            string         `json:"status"`
	Language          string         `json:"language"`
	CreatedAt         time.Time      `json:"createdAt"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

// SameSlot reports whether b is a confirmed booking for date and time.
func (b Booking) SameSlot(date, clock string) bool {
	return b.Status == StatusConfirmed &&
		NormalizeDate(b.BookingDate) == NormalizeDate(date) &&
		NormalizeTime(b.BookingTime) == NormalizeTime(clock)
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// NormalizeDate reduces a date to YYYY-MM-DD. Unparseable input is returned
// trimmed so that equal strings still compare equal.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04pm",
	"3:04 pm",
	"3pm",
	"3 pm",
}

// NormalizeTime reduces a clock time to 24h HH:MM.
func NormalizeTime(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(strings.ReplaceAll(s, ".", ""))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, lower); err == nil {
			return t.Format("15:04")
		}
	}
	return s
}

var (
	outdoorWords  = map[string]bool{"outdoor": true, "outdoors": true, "outside": true, "patio": true, "terrace": true, "garden": true, "balcony": true, "rooftop": true, "alfresco": true}
	indoorWords   = map[string]bool{"indoor": true, "indoors": true, "inside": true, "interior": true}
	negationWords = map[string]bool{"no": true, "not": true, "don't": true, "dont": true, "without": true, "avoid": true, "never": true}
)

// negationReach is how many words after a negation it still applies to.
const negationReach = 4

// NormalizeSeating maps free-form seating text onto indoor, outdoor or any.
// Words are matched whole; a negated preference counts for the other side.
// Mixed or unrecognised text is any.
func NormalizeSeating(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var indoor, outdoor bool
	negatedFor := 0
	for _, w := range words {
		switch {
		case negationWords[w]:
			negatedFor = negationReach
			continue
		case outdoorWords[w]:
			if negatedFor > 0 {
				indoor = true
			} else {
				outdoor = true
			}
			negatedFor = 0
			continue
		case indoorWords[w]:
			if negatedFor > 0 {
				outdoor = true
			} else {
				indoor = true
			}
			negatedFor = 0
			continue
		}
		if negatedFor > 0 {
			negatedFor--
		}
	}

	switch {
	case outdoor && !indoor:
		return SeatingOutdoor
	case indoor && !outdoor:
		return SeatingIndoor
	default:
		return SeatingAny
	}
}
