package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/openaicompat"
)

type Backend string

const (
	BackendEino   Backend = "eino"
	BackendOpenAI Backend = "openai"
)

type Config struct {
	Backend            Backend       `envconfig:"BACKEND" split_words:"true" default:"eino"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o-mini"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"1000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`
}

// Offline reports whether no credentials are configured.
func (c Config) Offline() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

func (c Config) Validate() error {
	if c.Offline() {
		return nil
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	switch c.Backend {
	case BackendEino, BackendOpenAI:
	default:
		return fmt.Errorf("%w: unknown completion backend %q", contractx.ErrValidation, c.Backend)
	}
	return nil
}

func (c Config) Provider() openaicompat.Config {
	maxCompletionToken := c.MaxCompletionToken
	return openaicompat.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              strings.TrimSpace(c.Model),
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        c.Temperature,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
