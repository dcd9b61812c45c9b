package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

type bookingRow struct {
	bun.BaseModel `bun:"table:bookings,alias:b"`

	BookingID         string         `bun:"booking_id,pk"`
	CustomerName      string         `bun:"customer_name,notnull"`
	NumberOfGuests    int            `bun:"number_of_guests,notnull"`
	BookingDate       time.Time      `bun:"booking_date,type:date,notnull"`
	BookingTime       string         `bun:"booking_time,notnull"`
	CuisinePreference string         `bun:"cuisine_preference,notnull"`
	SpecialRequests   string         `bun:"special_requests,notnull"`
	WeatherInfo       map[string]any `bun:"weather_info,type:jsonb"`
	SeatingPreference string         `bun:"seating_preference,notnull"`
	Status            string         `bun:"status,notnull"`
	Language          string         `bun:"language,notnull"`
	CreatedAt         time.Time      `bun:"created_at,notnull"`
}

// BunStore keeps bookings in Postgres. A unique partial index on confirmed
// (date, time) pairs enforces the slot rule across concurrent writers.
type BunStore struct {
	db *bun.DB
}

var _ Store = (*BunStore)(nil)

// OpenBunStore connects to dsn and creates the schema if missing.
func OpenBunStore(ctx context.Context, dsn string) (*BunStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &BunStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BunStore) migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*bookingRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create bookings table: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS bookings_confirmed_slot_idx
		 ON bookings (booking_date, booking_time) WHERE status = 'confirmed'`)
	if err != nil {
		return fmt.Errorf("create slot index: %w", err)
	}
	return nil
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

func (s *BunStore) List(ctx context.Context) ([]bookingapi.Booking, error) {
	var rows []bookingRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := make([]bookingapi.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toBooking())
	}
	return out, nil
}

func (s *BunStore) Get(ctx context.Context, id string) (bookingapi.Booking, error) {
	var row bookingRow
	err := s.db.NewSelect().Model(&row).Where("booking_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return bookingapi.Booking{}, ErrNotFound
	}
	if err != nil {
		return bookingapi.Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	return row.toBooking(), nil
}

func (s *BunStore) Insert(ctx context.Context, b bookingapi.Booking) error {
	row, err := rowFromBooking(b)
	if err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.IntegrityViolation() {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *BunStore) Cancel(ctx context.Context, id string) (bookingapi.Booking, error) {
	res, err := s.db.NewUpdate().
		Model((*bookingRow)(nil)).
		Set("status = ?", bookingapi.StatusCancelled).
		Where("booking_id = ?", id).
		Exec(ctx)
	if err != nil {
		return bookingapi.Booking{}, fmt.Errorf("cancel booking %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return bookingapi.Booking{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func rowFromBooking(b bookingapi.Booking) (bookingRow, error) {
	day, err := time.Parse(bookingapi.DateLayout, b.BookingDate)
	if err != nil {
		return bookingRow{}, fmt.Errorf("%w: booking date %q", ErrInvalid, b.BookingDate)
	}
	return bookingRow{
		BookingID:         b.BookingID,
		CustomerName:      b.CustomerName,
		NumberOfGuests:    b.NumberOfGuests,
		BookingDate:       day,
		BookingTime:       b.BookingTime,
		CuisinePreference: b.CuisinePreference,
		SpecialRequests:   b.SpecialRequests,
		WeatherInfo:       b.WeatherInfo,
		SeatingPreference: b.SeatingPreference,
		Status:            b.Status,
		Language:          b.Language,
		CreatedAt:         b.CreatedAt,
	}, nil
}

func (r bookingRow) toBooking() bookingapi.Booking {
	weather := r.WeatherInfo
	if weather == nil {
		weather = map[string]any{}
	}
	return bookingapi.Booking{
		BookingID:         r.BookingID,
		CustomerName:      r.CustomerName,
		NumberOfGuests:    r.NumberOfGuests,
		BookingDate:       r.BookingDate.Format(bookingapi.DateLayout),
		BookingTime:       r.BookingTime,
		CuisinePreference: r.CuisinePreference,
		SpecialRequests:   r.SpecialRequests,
		WeatherInfo:       weather,
		SeatingPreference: r.SeatingPreference,
		Status:            r.Status,
		Language:          r.Language,
		CreatedAt:         r.CreatedAt,
	}
}
