package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	nodex "github.com/tanpawarit/voice-booking-agent/agent/nodes/orchestrator"
	statex "github.com/tanpawarit/voice-booking-agent/agent/state"
)

var (
	ErrInvalidMessage     = nodex.ErrInvalidMessage
	ErrInvalidParticipant = nodex.ErrInvalidParticipant
)

const (
	DefaultMaxRoundTrips   = 6
	DefaultModelTimeout    = 30 * time.Second
	DefaultToolConcurrency = 4
)

type Config struct {
	MaxRoundTrips   int
	ModelTimeout    time.Duration
	ToolConcurrency int
}

// Engine answers one utterance at a time per participant by running the
// tool-orchestration loop over the participant's transcript.
type Engine struct {
	dialogue    nodex.Dialogue
	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
	now         func() time.Time
}

var _ contractx.Replier = (*Engine)(nil)

func New(
	store *statex.DialogueStore,
	completion contractx.Completion,
	tools contractx.ToolInvoker,
	cfg Config,
) (*Engine, error) {
	if store == nil {
		return nil, errors.New("dialogue store is required")
	}
	if completion == nil {
		return nil, errors.New("completion client is required")
	}
	if tools == nil {
		return nil, errors.New("tool registry is required")
	}

	if cfg.MaxRoundTrips <= 0 {
		cfg.MaxRoundTrips = DefaultMaxRoundTrips
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultModelTimeout
	}
	if cfg.ToolConcurrency <= 0 {
		cfg.ToolConcurrency = DefaultToolConcurrency
	}

	e := &Engine{
		dialogue: nodex.Dialogue{
			Store:           store,
			Completion:      completion,
			Tools:           tools,
			MaxRoundTrips:   cfg.MaxRoundTrips,
			ModelTimeout:    cfg.ModelTimeout,
			ToolConcurrency: cfg.ToolConcurrency,
		},
		now: time.Now,
	}

	graphRunner, err := e.compileReplyGraph(context.Background())
	if err != nil {
		return nil, err
	}
	e.graphRunner = graphRunner

	return e, nil
}

// Reply runs one dialogue turn. Completion failures are not errors: they
// yield a fixed apology. Errors are returned only for invalid input or when
// ctx ends while waiting for the participant's previous turn.
func (e *Engine) Reply(ctx context.Context, participantID string, text string) (string, error) {
	out, err := e.graphRunner.Invoke(ctx, nodex.GraphInput{
		ParticipantID: participantID,
		Text:          text,
	})
	if err != nil {
		return "", err
	}
	return out.Reply, nil
}
