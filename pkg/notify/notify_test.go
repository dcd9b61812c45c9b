package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"

	"github.com/tanpawarit/voice-booking-agent/pkg/bookingapi"
	qstashx "github.com/tanpawarit/voice-booking-agent/pkg/qstash"
)

var booking = bookingapi.Booking{
	BookingID:      "bk_1",
	CustomerName:   "Ana",
	NumberOfGuests: 2,
	BookingDate:    "2026-10-20",
	BookingTime:    "19:00",
	Status:         bookingapi.StatusConfirmed,
}

type recordingNotifier struct {
	channel string
	err     error

	mu   sync.Mutex
	seen []string
}

func (r *recordingNotifier) Channel() string { return r.channel }

func (r *recordingNotifier) Notify(ctx context.Context, b bookingapi.Booking) error {
	r.mu.Lock()
	r.seen = append(r.seen, b.BookingID)
	r.mu.Unlock()
	return r.err
}

func TestDispatcherSendsToEveryChannel(t *testing.T) {
	t.Parallel()

	ok := &recordingNotifier{channel: "ok"}
	failing := &recordingNotifier{channel: "failing", err: errors.New("smtp down")}
	d := NewDispatcher(ok, failing)

	d.Dispatch(booking)
	d.Wait()

	for _, n := range []*recordingNotifier{ok, failing} {
		if len(n.seen) != 1 || n.seen[0] != "bk_1" {
			t.Fatalf("%s saw %v", n.channel, n.seen)
		}
	}
}

func TestEmailMockSendWithoutCredentials(t *testing.T) {
	t.Parallel()

	e := NewEmail(EmailConfig{})
	e.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("smtp used without credentials")
		return nil
	}
	if err := e.Notify(context.Background(), booking); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
}

func TestEmailSends(t *testing.T) {
	t.Parallel()

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	e := NewEmail(EmailConfig{User: "desk@example.com", Pass: "pw", SMTPHost: "smtp.example.com", SMTPPort: "587"})
	e.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := e.Notify(context.Background(), booking); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "desk@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: Booking Confirmation") || !strings.Contains(gotMsg, "Your booking for Ana is confirmed!") {
		t.Fatalf("message = %q", gotMsg)
	}
}

func TestSMSPostsToTwilio(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC1/Messages.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, _ := r.BasicAuth()
		if user != "AC1" || pass != "secret" {
			t.Errorf("basic auth = %s:%s", user, pass)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("To") != "+15550001" || r.PostForm.Get("From") != "+15559999" {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.PostForm.Get("Body") != "Booking Confirmed: Ana at 19:00" {
			t.Errorf("body = %q", r.PostForm.Get("Body"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSMS(SMSConfig{
		AccountSID:  "AC1",
		AuthToken:   "secret",
		PhoneNumber: "+15559999",
		AdminPhone:  "+15550001",
		BaseURL:     srv.URL,
	})
	if err := s.Notify(context.Background(), booking); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
}

func TestSMSReportsTwilioError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To number"}`))
	}))
	defer srv.Close()

	s := NewSMS(SMSConfig{AccountSID: "AC1", AuthToken: "x", PhoneNumber: "+1", AdminPhone: "bad", BaseURL: srv.URL})
	err := s.Notify(context.Background(), booking)
	if err == nil || !strings.Contains(err.Error(), "invalid To number") {
		t.Fatalf("Notify() error = %v", err)
	}
}

type fakeQueue struct {
	destination string
	body        any
}

func (f *fakeQueue) Publish(ctx context.Context, destination string, body any) (qstashx.PublishResult, error) {
	f.destination, f.body = destination, body
	return qstashx.PublishResult{MessageID: "msg_1"}, nil
}

func TestWebhookQueuesEvent(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}
	if err := NewWebhook(q, " https://hooks.example.com/b ").Notify(context.Background(), booking); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	ev, ok := q.body.(WebhookEvent)
	if q.destination != "https://hooks.example.com/b" || !ok || ev.Event != "booking.created" || ev.Booking.BookingID != "bk_1" {
		t.Fatalf("queued %q %#v", q.destination, q.body)
	}
}
