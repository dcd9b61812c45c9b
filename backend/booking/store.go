// Package booking is the restaurant booking service behind /api/bookings.
package booking

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
)

var (
	ErrSlotTaken = errors.New("time slot already booked")
	ErrNotFound  = errors.New("booking not found")
	ErrInvalid   = errors.New("invalid booking")
)

// Store persists bookings. Insert must reject a confirmed booking whose slot
// is already held by another confirmed booking.
type Store interface {
	List(ctx context.Context) ([]bookingapi.Booking, error)
	Get(ctx context.Context, id string) (bookingapi.Booking, error)
	Insert(ctx context.Context, b bookingapi.Booking) error
	Cancel(ctx context.Context, id string) (bookingapi.Booking, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	bookings []bookingapi.Booking
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// List returns bookings newest first.
func (m *MemoryStore) List(ctx context.Context) ([]bookingapi.Booking, error) {
	m.mu.RLock()
	out := make([]bookingapi.Booking, len(m.bookings))
	copy(out, m.bookings)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (bookingapi.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bookings {
		if b.BookingID == id {
			return b, nil
		}
	}
	return bookingapi.Booking{}, ErrNotFound
}

func (m *MemoryStore) Insert(ctx context.Context, b bookingapi.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.Status == bookingapi.StatusConfirmed {
		for _, existing := range m.bookings {
			if existing.SameSlot(b.BookingDate, b.BookingTime) {
				return ErrSlotTaken
			}
		}
	}
	m.bookings = append(m.bookings, b)
	return nil
}

func (m *MemoryStore) Cancel(ctx context.Context, id string) (bookingapi.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].BookingID == id {
			m.bookings[i].Status = bookingapi.StatusCancelled
			return m.bookings[i], nil
		}
	}
	return bookingapi.Booking{}, ErrNotFound
}
