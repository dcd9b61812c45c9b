// Package notify sends booking confirmations. Each channel falls back to a
// logged mock send when its credentials are missing.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const DefaultSendTimeout = 15 * time.Second

// Notifier delivers one confirmation for a stored booking.
type Notifier interface {
	Channel() string
	Notify(ctx context.Context, b bookingapi.Booking) error
}

// Dispatcher fans a booking out to every notifier in the background. Failures
// are logged and never reach the caller.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       zerolog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   DefaultSendTimeout,
		log:       logx.Component("notify"),
	}
}

// Dispatch returns immediately.
func (d *Dispatcher) Dispatch(b bookingapi.Booking) {
	for _, n := range d.notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := n.Notify(ctx, b); err != nil {
				metrics.Notifications.WithLabelValues(n.Channel(), "failed").Inc()
				d.log.Error().Err(err).Str("channel", n.Channel()).Str("booking", b.BookingID).Msg("notification failed")
				return
			}
			metrics.Notifications.WithLabelValues(n.Channel(), "sent").Inc()
			d.log.Info().Str("channel", n.Channel()).Str("booking", b.BookingID).Msg("notification sent")
		}(n)
	}
}

// Wait blocks until in-flight dispatches finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func emailBody(b bookingapi.Booking) (subject, text string) {
	return "Booking Confirmation", fmt.Sprintf("Your booking for %s is confirmed! %d guests on %s at %s. Reference %s.",
		b.CustomerName, b.NumberOfGuests, b.BookingDate, b.BookingTime, b.BookingID)
}

func smsBody(b bookingapi.Booking) string {
	return fmt.Sprintf("Booking Confirmed: %s at %s", b.CustomerName, b.BookingTime)
}
