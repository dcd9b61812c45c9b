package contract

import "context"

type Completion interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

type ToolInvoker interface {
	Specs() []ToolSpec
	Invoke(ctx context.Context, call ToolCall) ToolResult
}

// Replier produces the spoken answer for one utterance of a participant.
type Replier interface {
	Reply(ctx context.Context, participantID string, text string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
}

type Transport interface {
	Publisher
	Subscribe(handler func(InboundMessage))
	Close() error
}
