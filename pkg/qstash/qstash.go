// Package qstash publishes messages to Upstash QStash, which delivers them to
// a destination URL with retries.
package qstash

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultURL = "https://qstash.upstash.io"

var ErrPublish = errors.New("qstash publish failed")

type Config struct {
	URL     string        `split_words:"true" default:"https://qstash.upstash.io"`
	Token   string        `split_words:"true"`
	Retries int           `split_words:"true" default:"3"`
	Timeout time.Duration `split_words:"true" default:"10s"`
}

func (c Config) Configured() bool {
	return strings.TrimSpace(c.Token) != ""
}

type Client struct {
	baseURL string
	retries int
	http    *resty.Client
}

type PublishResult struct {
	MessageID string `json:"messageId"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		retries: cfg.Retries,
		http: resty.New().
			SetTimeout(timeout).
			SetAuthToken(token),
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues body as JSON for delivery to destination.
func (c *Client) Publish(ctx context.Context, destination string, body any) (PublishResult, error) {
	if _, err := url.ParseRequestURI(destination); err != nil {
		return PublishResult{}, fmt.Errorf("%w: invalid destination: %v", ErrPublish, err)
	}

	var out PublishResult
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&out)
	if c.retries > 0 {
		req.SetHeader("Upstash-Retries", fmt.Sprint(c.retries))
	}

	resp, err := req.Post(c.baseURL + "/v2/publish/" + destination)
	if err != nil {
		return PublishResult{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	if resp.IsError() {
		return PublishResult{}, fmt.Errorf("%w: status %d: %s", ErrPublish, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return out, nil
}
