package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/openaicompat"
)

// New selects the completion backend described by cfg.
func New(ctx context.Context, cfg Config) (contractx.Completion, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Offline() {
		log.Warn().Msg("no completion api key configured, using offline replies")
		return OfflineCompletion{}, nil
	}

	provider := cfg.Provider()
	switch cfg.Backend {
	case BackendOpenAI:
		client := openaicompat.NewClient(provider)
		log.Info().Str("backend", string(cfg.Backend)).Str("model", provider.Model).Msg("completion client ready")
		return NewOpenAICompletion(client, cfg), nil
	default:
		chatModel, err := provider.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		log.Info().Str("backend", string(BackendEino)).Str("model", provider.Model).Msg("completion client ready")
		return NewEinoCompletion(chatModel), nil
	}
}
