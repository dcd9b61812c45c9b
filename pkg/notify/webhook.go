package notify

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	qstashx "github.com/tanpawarit/voice-booking-agent/pkg/qstash"
)

type Publisher interface {
	Publish(ctx context.Context, destination string, body any) (qstashx.PublishResult, error)
}

type WebhookEvent struct {
	Event   string             `json:"event"`
	Booking bookingapi.Booking `json:"booking"`
}

// Webhook queues a booking.created event on QStash for delivery to url.
type Webhook struct {
	queue Publisher
	url   string
	log   zerolog.Logger
}

func NewWebhook(queue Publisher, url string) *Webhook {
	return &Webhook{queue: queue, url: strings.TrimSpace(url), log: logx.Component("notify.webhook")}
}

func (w *Webhook) Channel() string { return "webhook" }

func (w *Webhook) Notify(ctx context.Context, b bookingapi.Booking) error {
	res, err := w.queue.Publish(ctx, w.url, WebhookEvent{Event: "booking.created", Booking: b})
	if err != nil {
		return err
	}
	w.log.Debug().Str("message_id", res.MessageID).Str("booking", b.BookingID).Msg("webhook queued")
	return nil
}
