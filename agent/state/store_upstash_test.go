package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

type redisRecorder struct {
	mu       sync.Mutex
	commands [][]any
	reply    string
}

func (r *redisRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		if got := req.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		var cmd []any
		if err := json.NewDecoder(req.Body).Decode(&cmd); err != nil {
			t.Errorf("decode command: %v", err)
		}
		r.mu.Lock()
		r.commands = append(r.commands, cmd)
		reply := r.reply
		r.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, reply)
	}
}

func (r *redisRecorder) last() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return nil
	}
	return r.commands[len(r.commands)-1]
}

func newTestUpstash(t *testing.T, rec *redisRecorder, opts ...StoreOption) *UpstashRedisStore {
	t.Helper()
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	opts = append([]StoreOption{WithHTTPClient(server.Client())}, opts...)
	store, err := NewUpstashRedisStore(UpstashRedisConfig{URL: server.URL, Token: "token"}, opts...)
	if err != nil {
		t.Fatalf("NewUpstashRedisStore() error = %v", err)
	}
	return store
}

func TestUpstashRedisStoreRedisKey(t *testing.T) {
	t.Parallel()

	store := &UpstashRedisStore{keyPrefix: defaultStoreKeyPrefix}
	got, err := store.redisKey("alice")
	if err != nil {
		t.Fatalf("redisKey() error = %v", err)
	}
	if got != "voice:transcript:alice" {
		t.Fatalf("redisKey() = %q, want %q", got, "voice:transcript:alice")
	}

	_, err = store.redisKey("   ")
	if !errors.Is(err, ErrInvalidParticipant) {
		t.Fatalf("redisKey() error = %v, want ErrInvalidParticipant", err)
	}
}

func TestNewUpstashRedisStoreRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewUpstashRedisStore(UpstashRedisConfig{Token: "x"}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://redis.test"}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewUpstashRedisStore(UpstashRedisConfig{URL: "https://redis.test", Token: "x"}, WithTTL(-time.Second)); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestUpstashRedisStoreSave(t *testing.T) {
	t.Parallel()

	rec := &redisRecorder{reply: `{"result":"OK"}`}
	store := newTestUpstash(t, rec, WithKeyPrefix("test:"), WithTTL(90*time.Second))

	tr := NewTranscript("alice", "system", time.Now())
	tr.Append(contractx.UserTurn("hello"))
	if err := store.Save(context.Background(), tr); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	cmd := rec.last()
	if len(cmd) != 5 {
		t.Fatalf("unexpected command: %#v", cmd)
	}
	if cmd[0] != "SET" || cmd[1] != "test:alice" {
		t.Fatalf("command = %v %v, want SET test:alice", cmd[0], cmd[1])
	}
	if cmd[3] != "EX" || cmd[4] != float64(90) {
		t.Fatalf("expiry = %v %v, want EX 90", cmd[3], cmd[4])
	}
}

func TestUpstashRedisStoreLoad(t *testing.T) {
	t.Parallel()

	seed := NewTranscript("bob", "system", time.Now())
	seed.Append(
		contractx.UserTurn("weather?"),
		contractx.AssistantTurn("", []contractx.ToolCall{{ID: "c1", Name: "getWeather", Arguments: `{}`}}),
		contractx.ToolResultTurn(contractx.ToolResult{CallID: "c1", Tool: "getWeather", Result: map[string]any{"condition": "sunny"}}),
		contractx.AssistantTurn("Sunny.", nil),
	)
	payload, err := json.Marshal(seed)
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	encoded, err := json.Marshal(string(payload))
	if err != nil {
		t.Fatalf("marshal encoded seed: %v", err)
	}

	rec := &redisRecorder{reply: fmt.Sprintf(`{"result":%s}`, encoded)}
	store := newTestUpstash(t, rec)

	got, err := store.Load(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ParticipantID != "bob" || got.Len() != 5 {
		t.Fatalf("Load() = %s with %d turns", got.ParticipantID, got.Len())
	}
	if got.Turns[2].ToolCalls[0].ID != "c1" {
		t.Fatalf("tool call id lost: %#v", got.Turns[2])
	}
	if cmd := rec.last(); cmd[0] != "GET" || cmd[1] != "voice:transcript:bob" {
		t.Fatalf("command = %#v", cmd)
	}
}

func TestUpstashRedisStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store := newTestUpstash(t, &redisRecorder{reply: `{"result":null}`})
	_, err := store.Load(context.Background(), "nobody")
	if !errors.Is(err, ErrTranscriptNotFound) {
		t.Fatalf("Load() error = %v, want ErrTranscriptNotFound", err)
	}
}

func TestUpstashRedisStoreDelete(t *testing.T) {
	t.Parallel()

	rec := &redisRecorder{reply: `{"result":1}`}
	store := newTestUpstash(t, rec)

	if err := store.Delete(context.Background(), "carol"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if cmd := rec.last(); cmd[0] != "DEL" || cmd[1] != "voice:transcript:carol" {
		t.Fatalf("command = %#v", cmd)
	}
}

func TestUpstashRedisStoreRedisError(t *testing.T) {
	t.Parallel()

	store := newTestUpstash(t, &redisRecorder{reply: `{"error":"WRONGTYPE"}`})
	err := store.Delete(context.Background(), "dave")
	if !errors.Is(err, ErrSnapshotStore) || !strings.Contains(err.Error(), "WRONGTYPE") {
		t.Fatalf("Delete() error = %v, want WRONGTYPE", err)
	}
}
