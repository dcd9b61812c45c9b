package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		reply = EmptyReply
	}

	metrics.DialogueTurns.WithLabelValues(string(in.Outcome)).Inc()
	metrics.ModelRoundTrips.Observe(float64(in.Rounds))

	return GraphOutput{
		Reply:   reply,
		Outcome: in.Outcome,
		Rounds:  in.Rounds,
	}, nil
}
