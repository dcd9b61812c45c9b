package llm

import (
	"context"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

const OfflineReply = "I'm sorry, the booking assistant is not available right now. Please try again later."

// OfflineCompletion answers every request with a fixed text. It is selected
// when no API key is configured so the agent still replies.
type OfflineCompletion struct{}

var _ contractx.Completion = OfflineCompletion{}

func (OfflineCompletion) Complete(context.Context, contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	return contractx.CompletionResponse{Content: OfflineReply}, nil
}
