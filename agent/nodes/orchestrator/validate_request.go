package orchestratornode

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidMessage     = errors.New("message is empty")
	ErrInvalidParticipant = errors.New("participant id is empty")
)

type LoopState string

const (
	StateAwaitingModel  LoopState = "AWAITING_MODEL"
	StateExecutingTools LoopState = "EXECUTING_TOOLS"
	StateDone           LoopState = "DONE"
)

// Outcome describes how a dialogue turn ended.
type Outcome string

const (
	OutcomeDone       Outcome = "done"
	OutcomeDegraded   Outcome = "degraded"
	OutcomeModelError Outcome = "model_error"
)

type GraphInput struct {
	ParticipantID string
	Text          string
}

type GraphOutput struct {
	Reply   string
	Outcome Outcome
	Rounds  int
}

type GraphState struct {
	ParticipantID string
	Text          string
	Now           time.Time

	Reply   string
	Outcome Outcome
	Rounds  int
	Trimmed int
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	participantID := strings.TrimSpace(in.ParticipantID)
	if participantID == "" {
		return nil, ErrInvalidParticipant
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		ParticipantID: participantID,
		Text:          text,
		Now:           nowFn().UTC(),
	}, nil
}
