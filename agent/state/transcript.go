package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

var (
	ErrMissingSystemTurn = errors.New("transcript must start with a system turn")
	ErrOrphanToolResult  = errors.New("tool result without matching tool call")
	ErrUnansweredCall    = errors.New("tool call without result")
)

// Transcript is the ordered conversation of one participant. Turn 0 is
// always the system turn.
type Transcript struct {
	ParticipantID string           `json:"participant_id"`
	Turns         []contractx.Turn `json:"turns"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func NewTranscript(participantID, systemPrompt string, now time.Time) *Transcript {
	return &Transcript{
		ParticipantID: participantID,
		Turns:         []contractx.Turn{contractx.SystemTurn(systemPrompt)},
		UpdatedAt:     now.UTC(),
	}
}

func (t *Transcript) Append(turns ...contractx.Turn) {
	t.Turns = append(t.Turns, turns...)
}

func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Turns)
}

func (t *Transcript) Touch(now time.Time) {
	t.UpdatedAt = now.UTC()
}

// Clone returns a deep enough copy for callers outside the session lock.
func (t *Transcript) Clone() *Transcript {
	if t == nil {
		return nil
	}
	out := &Transcript{
		ParticipantID: t.ParticipantID,
		Turns:         make([]contractx.Turn, len(t.Turns)),
		UpdatedAt:     t.UpdatedAt,
	}
	for i, turn := range t.Turns {
		if len(turn.ToolCalls) > 0 {
			turn.ToolCalls = append([]contractx.ToolCall(nil), turn.ToolCalls...)
		}
		out.Turns[i] = turn
	}
	return out
}

// Trim drops the oldest turns after the system turn until the transcript fits
// limit. Tool results left at the head of the kept window lost their
// assistant turn, so they are dropped too; the result can then be shorter
// than limit. Returns the number of dropped turns.
func (t *Transcript) Trim(limit int) int {
	if limit < 1 {
		limit = 1
	}
	if len(t.Turns) <= limit {
		return 0
	}

	start := 1 + len(t.Turns) - limit
	for start < len(t.Turns) && t.Turns[start].Role == contractx.RoleTool {
		start++
	}

	kept := make([]contractx.Turn, 0, 1+len(t.Turns)-start)
	kept = append(kept, t.Turns[0])
	kept = append(kept, t.Turns[start:]...)

	dropped := len(t.Turns) - len(kept)
	t.Turns = kept
	return dropped
}

// PendingCalls lists tool-call ids of the last assistant turn that have no
// result yet.
func (t *Transcript) PendingCalls() []string {
	last := -1
	for i := len(t.Turns) - 1; i >= 0; i-- {
		if t.Turns[i].Role == contractx.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 || !t.Turns[last].HasToolCalls() {
		return nil
	}

	answered := make(map[string]struct{})
	for _, turn := range t.Turns[last+1:] {
		if turn.Role == contractx.RoleTool {
			answered[turn.ToolCallID] = struct{}{}
		}
	}

	var pending []string
	for _, call := range t.Turns[last].ToolCalls {
		if _, ok := answered[call.ID]; !ok {
			pending = append(pending, call.ID)
		}
	}
	return pending
}

// Validate checks the system-first rule and that every tool result answers a
// call of the nearest preceding assistant turn, and every call is answered
// before the next assistant turn.
func (t *Transcript) Validate() error {
	if len(t.Turns) == 0 || t.Turns[0].Role != contractx.RoleSystem {
		return ErrMissingSystemTurn
	}

	open := map[string]struct{}{}
	for i, turn := range t.Turns[1:] {
		switch turn.Role {
		case contractx.RoleSystem:
			return fmt.Errorf("%w: extra system turn at %d", ErrMissingSystemTurn, i+1)
		case contractx.RoleAssistant:
			if len(open) > 0 {
				return fmt.Errorf("%w: %d call(s) before turn %d", ErrUnansweredCall, len(open), i+1)
			}
			for _, call := range turn.ToolCalls {
				open[call.ID] = struct{}{}
			}
		case contractx.RoleTool:
			if _, ok := open[turn.ToolCallID]; !ok {
				return fmt.Errorf("%w: call_id=%s at %d", ErrOrphanToolResult, turn.ToolCallID, i+1)
			}
			delete(open, turn.ToolCallID)
		case contractx.RoleUser:
			if len(open) > 0 {
				return fmt.Errorf("%w: %d call(s) before turn %d", ErrUnansweredCall, len(open), i+1)
			}
		}
	}
	if len(open) > 0 {
		return fmt.Errorf("%w: %d call(s) at end", ErrUnansweredCall, len(open))
	}
	return nil
}
