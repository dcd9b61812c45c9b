package livekit

import (
	"errors"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
)

var ErrMissingCredentials = errors.New("livekit api key and secret are required")

// TokenGenerator mints LiveKit access tokens.
type TokenGenerator struct {
	apiKey    string
	apiSecret string
	ttl       time.Duration
}

func NewTokenGenerator(cfg Config) *TokenGenerator {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &TokenGenerator{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		apiSecret: strings.TrimSpace(cfg.APISecret),
		ttl:       ttl,
	}
}

// Generate creates a token that lets identity join room and exchange data
// packets.
func (g *TokenGenerator) Generate(room, identity string) (string, error) {
	if g.apiKey == "" || g.apiSecret == "" {
		return "", ErrMissingCredentials
	}

	canPublish := true
	canSubscribe := true
	canPublishData := true

	at := auth.NewAccessToken(g.apiKey, g.apiSecret)
	at.AddGrant(&auth.VideoGrant{
		RoomJoin:       true,
		Room:           room,
		CanPublish:     &canPublish,
		CanSubscribe:   &canSubscribe,
		CanPublishData: &canPublishData,
	}).
		SetIdentity(identity).
		SetValidFor(g.ttl)

	return at.ToJWT()
}
