package livekit

import (
	"strings"
	"time"
)

type Config struct {
	URL       string        `envconfig:"URL" split_words:"true"`
	APIKey    string        `envconfig:"API_KEY" split_words:"true"`
	APISecret string        `envconfig:"API_SECRET" split_words:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" split_words:"true" default:"6h"`
}

// Configured reports whether the agent can join a LiveKit room.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" &&
		strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.APISecret) != ""
}

// CanMintTokens reports whether access tokens can be issued for clients.
func (c Config) CanMintTokens() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}
