package booking

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

func TestBookingRowRoundTrip(t *testing.T) {
	t.Parallel()

	b := bookingapi.Booking{
		BookingID:      "bk_1",
		CustomerName:   "Ana",
		NumberOfGuests: 4,
		BookingDate:    "2026-10-20",
		BookingTime:    "19:00",
		Status:         bookingapi.StatusConfirmed,
		CreatedAt:      time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
	row, err := rowFromBooking(b)
	if err != nil {
		t.Fatalf("rowFromBooking() error = %v", err)
	}
	got := row.toBooking()
	if got.BookingDate != "2026-10-20" || got.WeatherInfo == nil || got.NumberOfGuests != 4 {
		t.Fatalf("toBooking() = %#v", got)
	}

	b.BookingDate = "next friday"
	if _, err := rowFromBooking(b); !errors.Is(err, ErrInvalid) {
		t.Fatalf("rowFromBooking(bad date) error = %v", err)
	}
}

// Runs against a real Postgres when BOOKING_TEST_DATABASE_URL is set.
func TestBunStoreSlotIndex(t *testing.T) {
	dsn := os.Getenv("BOOKING_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BOOKING_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	store, err := OpenBunStore(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenBunStore() error = %v", err)
	}
	defer store.Close()
	_, _ = store.db.NewTruncateTable().Model((*bookingRow)(nil)).Exec(ctx)

	svc := NewService(store)
	first, err := svc.Create(ctx, validDraft())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, validDraft()); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("duplicate Create() error = %v", err)
	}
	if _, err := svc.Cancel(ctx, first.BookingID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if _, err := svc.Create(ctx, validDraft()); err != nil {
		t.Fatalf("Create() after cancel error = %v", err)
	}
}
