package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	statex "github.com/tanpawarit/voice-booking-agent/agent/state"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const (
	ApologyReply  = "Sorry, I am having trouble processing your request."
	DegradedReply = "Sorry, I couldn't finish that request. Could you tell me again what you would like to book?"
	EmptyReply    = "Sorry, I didn't catch that. Could you say it again?"
)

// Dialogue carries what the loop needs to run one turn.
type Dialogue struct {
	Store           *statex.DialogueStore
	Completion      contractx.Completion
	Tools           contractx.ToolInvoker
	MaxRoundTrips   int
	ModelTimeout    time.Duration
	ToolConcurrency int
}

// RunDialogue appends the utterance and alternates between the model and the
// tools until the model answers in text or the round-trip budget runs out.
// The participant's transcript stays locked for the whole loop.
func RunDialogue(ctx context.Context, in *GraphState, d Dialogue) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if d.Store == nil || d.Completion == nil || d.Tools == nil {
		return nil, fmt.Errorf("%w: dialogue dependencies are missing", contractx.ErrValidation)
	}

	logger := logx.Component("orchestrator").With().Str("participant", in.ParticipantID).Logger()
	specs := d.Tools.Specs()

	err := d.Store.Do(ctx, in.ParticipantID, func(t *statex.Transcript) error {
		t.Append(contractx.UserTurn(in.Text))
		state := StateAwaitingModel

		for {
			if in.Rounds >= d.MaxRoundTrips {
				logger.Warn().Int("round", in.Rounds).Msg("round-trip budget exhausted")
				t.Append(contractx.AssistantTurn(DegradedReply, nil))
				in.Reply, in.Outcome = DegradedReply, OutcomeDegraded
				break
			}
			in.Rounds++

			resp, err := complete(ctx, d, t.Turns, specs)
			if err != nil {
				logger.Error().Err(err).Int("round", in.Rounds).Str("state", string(state)).Msg("completion failed")
				in.Reply, in.Outcome = ApologyReply, OutcomeModelError
				break
			}

			t.Append(contractx.AssistantTurn(resp.Content, resp.ToolCalls))
			if len(resp.ToolCalls) == 0 {
				in.Reply, in.Outcome = resp.Content, OutcomeDone
				break
			}

			state = StateExecutingTools
			logTransition(logger, state, in.Rounds, len(resp.ToolCalls))
			for _, res := range ExecuteTools(ctx, d.Tools, resp.ToolCalls, d.ToolConcurrency) {
				t.Append(contractx.ToolResultTurn(res))
			}
			state = StateAwaitingModel
			logTransition(logger, state, in.Rounds, 0)
		}

		logTransition(logger, StateDone, in.Rounds, 0)
		in.Trimmed = t.Trim(d.Store.HistoryCap())
		return nil
	})
	if err != nil {
		if errors.Is(err, statex.ErrInvalidParticipant) {
			return nil, ErrInvalidParticipant
		}
		return nil, err
	}
	return in, nil
}

func complete(ctx context.Context, d Dialogue, turns []contractx.Turn, specs []contractx.ToolSpec) (contractx.CompletionResponse, error) {
	if d.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ModelTimeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := d.Completion.Complete(ctx, contractx.CompletionRequest{
		Turns:      append([]contractx.Turn(nil), turns...),
		Tools:      specs,
		ToolChoice: contractx.ToolChoiceAuto,
	})
	metrics.CompletionDuration.Observe(time.Since(started).Seconds())
	return resp, err
}

func logTransition(logger zerolog.Logger, state LoopState, round, calls int) {
	evt := logger.Debug().Str("state", string(state)).Int("round", round)
	if calls > 0 {
		evt = evt.Int("tool_calls", calls)
	}
	evt.Msg("loop transition")
}
