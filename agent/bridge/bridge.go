package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	nodex "github.com/tanpawarit/voice-booking-agent/agent/nodes/orchestrator"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const (
	DefaultPublishAttempts = 3
	DefaultPublishBackoff  = 200 * time.Millisecond
	DefaultDrainTimeout    = 15 * time.Second
)

type Subscriber interface {
	Subscribe(handler func(contractx.InboundMessage))
}

// Bridge feeds inbound utterances to the replier and publishes one reply per
// utterance back to its sender. Utterances of one sender are handled in
// arrival order by a single drain goroutine; senders are independent.
type Bridge struct {
	replier   contractx.Replier
	publisher contractx.Publisher

	attempts     int
	backoff      time.Duration
	drainTimeout time.Duration
	log          zerolog.Logger

	mu        sync.Mutex
	base      context.Context
	cancel    context.CancelFunc
	closed    bool
	mailboxes map[string]*mailbox
	wg        sync.WaitGroup
}

type mailbox struct {
	queue []contractx.InboundMessage
}

type Option func(*Bridge)

func WithPublishRetry(attempts int, backoff time.Duration) Option {
	return func(b *Bridge) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if backoff >= 0 {
			b.backoff = backoff
		}
	}
}

// WithDrainTimeout bounds how long Serve keeps answering queued utterances
// after its context ends.
func WithDrainTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.drainTimeout = d
		}
	}
}

func New(replier contractx.Replier, publisher contractx.Publisher, opts ...Option) *Bridge {
	base, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		replier:      replier,
		publisher:    publisher,
		attempts:     DefaultPublishAttempts,
		backoff:      DefaultPublishBackoff,
		drainTimeout: DefaultDrainTimeout,
		log:          logx.Component("bridge"),
		base:         base,
		cancel:       cancel,
		mailboxes:    make(map[string]*mailbox),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Serve subscribes to the transport and blocks until ctx is done. It then
// stops accepting utterances and keeps answering the queued ones, detached
// from ctx, for at most the drain timeout.
func (b *Bridge) Serve(ctx context.Context, sub Subscriber) error {
	sub.Subscribe(b.Handle)
	<-ctx.Done()

	b.mu.Lock()
	b.closed = true
	pending := len(b.mailboxes)
	b.mu.Unlock()
	if pending > 0 {
		b.log.Info().Int("senders", pending).Msg("draining queued utterances")
	}

	drained := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(drained)
	}()
	timer := time.NewTimer(b.drainTimeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		b.log.Warn().Dur("timeout", b.drainTimeout).Msg("drain timed out, abandoning queued utterances")
		b.cancel()
		<-drained
	}
	return nil
}

// Wait blocks until every queued utterance has been answered.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// Handle queues an inbound message. It never blocks on the dialogue. Every
// message queued before shutdown gets exactly one reply.
func (b *Bridge) Handle(msg contractx.InboundMessage) {
	sender := strings.TrimSpace(msg.SenderIdentity)
	if sender == "" {
		sender = "unknown"
	}
	msg.SenderIdentity = sender

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.log.Warn().Str("participant", sender).Msg("bridge closed, dropping utterance")
		return
	}
	if box, ok := b.mailboxes[sender]; ok {
		box.queue = append(box.queue, msg)
		return
	}
	b.mailboxes[sender] = &mailbox{queue: []contractx.InboundMessage{msg}}
	b.wg.Add(1)
	go b.drain(b.base, sender)
}

func (b *Bridge) drain(ctx context.Context, sender string) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		box := b.mailboxes[sender]
		if len(box.queue) == 0 {
			delete(b.mailboxes, sender)
			b.mu.Unlock()
			return
		}
		msg := box.queue[0]
		box.queue = box.queue[1:]
		b.mu.Unlock()

		b.process(ctx, msg)
	}
}

func (b *Bridge) process(ctx context.Context, msg contractx.InboundMessage) {
	logger := b.log.With().Str("participant", msg.SenderIdentity).Logger()
	text := decode(msg.Payload)
	logger.Info().Str("text", text).Msg("utterance received")

	reply, err := b.replier.Reply(ctx, msg.SenderIdentity, text)
	switch {
	case errors.Is(err, nodex.ErrInvalidMessage):
		logger.Debug().Msg("empty utterance")
		reply = nodex.EmptyReply
	case err != nil:
		logger.Error().Err(err).Msg("dialogue turn failed")
		reply = nodex.ApologyReply
	}
	reply = StripMarkdown(reply)
	if reply == "" {
		reply = nodex.EmptyReply
	}

	out := contractx.OutboundMessage{
		Payload:               []byte(reply),
		Kind:                  contractx.DeliveryReliable,
		Topic:                 msg.Topic,
		DestinationIdentities: []string{msg.SenderIdentity},
	}
	if err := b.publish(ctx, out); err != nil {
		metrics.RepliesPublished.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("reply not delivered")
		return
	}
	metrics.RepliesPublished.WithLabelValues("ok").Inc()
	logger.Info().Str("reply", reply).Msg("reply published")
}

func (b *Bridge) publish(ctx context.Context, out contractx.OutboundMessage) error {
	var errs []error
	for attempt := 1; attempt <= b.attempts; attempt++ {
		err := b.publisher.Publish(ctx, out)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if attempt == b.attempts {
			break
		}
		b.log.Warn().Err(err).Int("attempt", attempt).Msg("publish failed, retrying")

		timer := time.NewTimer(time.Duration(attempt) * b.backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(append(errs, ctx.Err())...)
		}
	}
	return errors.Join(errs...)
}

func decode(payload []byte) string {
	if !utf8.Valid(payload) {
		payload = []byte(strings.ToValidUTF8(string(payload), ""))
	}
	return strings.TrimSpace(string(payload))
}
