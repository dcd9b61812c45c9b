package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrNilTranscript      = errors.New("transcript is nil")
	ErrInvalidParticipant = errors.New("participant id is empty")
	ErrSnapshotStore      = errors.New("snapshot store request failed")
)

const (
	defaultStoreKeyPrefix = "voice:transcript:"
	defaultStoreTTL       = 24 * time.Hour
)

// Store persists transcript snapshots so an evicted or restarted session
// can continue where it stopped.
type Store interface {
	Load(ctx context.Context, participantID string) (*Transcript, error)
	Save(ctx context.Context, t *Transcript) error
	Delete(ctx context.Context, participantID string) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

// WithHTTPClient swaps the transport used for REST calls, keeping the
// store's base URL, token and timeout.
func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil {
			s.rest.SetTransport(client.Transport)
		}
	}
}

// UpstashRedisStore keeps transcripts in Upstash Redis through its REST API.
type UpstashRedisStore struct {
	rest      *resty.Client
	keyPrefix string
	ttl       time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL"`
	Token   string        `envconfig:"TOKEN"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
	TTL     time.Duration `envconfig:"TTL" default:"24h"`
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultStoreTTL
	}

	store := &UpstashRedisStore{
		rest: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       ttl,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}

	return store, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, participantID string) (*Transcript, error) {
	key, err := s.redisKey(participantID)
	if err != nil {
		return nil, err
	}

	resp, err := s.exec(ctx, []any{"GET", key})
	if err != nil {
		return nil, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrTranscriptNotFound
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return nil, fmt.Errorf("decode transcript payload: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal([]byte(encoded), &t); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcript loaded from store: %w", err)
	}

	return &t, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, t *Transcript) error {
	if t == nil {
		return ErrNilTranscript
	}
	key, err := s.redisKey(t.ParticipantID)
	if err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	cmd := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		cmd = append(cmd, "EX", ttlSeconds(s.ttl))
	}

	_, err = s.exec(ctx, cmd)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, participantID string) error {
	key, err := s.redisKey(participantID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, []any{"DEL", key})
	return err
}

func (s *UpstashRedisStore) redisKey(participantID string) (string, error) {
	if strings.TrimSpace(participantID) == "" {
		return "", ErrInvalidParticipant
	}
	prefix := strings.TrimSpace(s.keyPrefix)
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + participantID, nil
}

// exec sends one command as a JSON array to the REST root, e.g.
// ["SET", key, value, "EX", 60].
func (s *UpstashRedisStore) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	var parsed redisRESTResponse
	resp, err := s.rest.R().
		SetContext(ctx).
		SetBody(command).
		SetResult(&parsed).
		SetError(&parsed).
		Post("/")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotStore, command[0], err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrSnapshotStore, command[0], parsed.Error)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s: status %d", ErrSnapshotStore, command[0], resp.StatusCode())
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
