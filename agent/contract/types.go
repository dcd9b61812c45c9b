package contract

import (
	"encoding/json"
	"fmt"
	"slices"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one transcript entry. Assistant turns may carry ToolCalls; tool
// turns answer exactly one call through ToolCallID.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

func SystemTurn(text string) Turn {
	return Turn{Role: RoleSystem, Content: text}
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

func AssistantTurn(text string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

func ToolResultTurn(res ToolResult) Turn {
	return Turn{
		Role:       RoleTool,
		Content:    res.Payload(),
		ToolCallID: res.CallID,
		ToolName:   res.Tool,
	}
}

func (t Turn) HasToolCalls() bool {
	return t.Role == RoleAssistant && len(t.ToolCalls) > 0
}

// ToolCall is a model request to run one tool. Arguments is the raw JSON
// object produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type ErrorCode string

const (
	CodeUnknownTool      ErrorCode = "unknown_tool"
	CodeInvalidArguments ErrorCode = "invalid_arguments"
	CodeExecutionFailed  ErrorCode = "execution_failed"
)

type ToolResult struct {
	CallID string    `json:"call_id"`
	Tool   string    `json:"tool"`
	Result any       `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
	Code   ErrorCode `json:"code,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// Payload is the serialized form appended to the transcript: the result
// value itself on success, an {error, code} object otherwise.
func (r ToolResult) Payload() string {
	var v any = r.Result
	if r.Failed() {
		v = map[string]any{"error": r.Error, "code": r.Code}
	}
	if v == nil {
		v = map[string]any{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		raw, _ = json.Marshal(map[string]any{
			"error": fmt.Sprintf("result of %s is not serializable: %v", r.Tool, err),
			"code":  CodeExecutionFailed,
		})
	}
	return string(raw)
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
)

type ParamSpec struct {
	Type     ParamType `json:"type"`
	Desc     string    `json:"description,omitempty"`
	Required bool      `json:"-"`
	Enum     []string  `json:"enum,omitempty"`
}

// ToolSpec declares a tool to the completion service.
type ToolSpec struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Params      map[string]*ParamSpec `json:"parameters"`
}

// JSONSchema renders the parameters as a JSON-schema object.
func (s ToolSpec) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for name, p := range s.Params {
		if p == nil {
			continue
		}
		prop := map[string]any{"type": string(p.Type)}
		if p.Desc != "" {
			prop["description"] = p.Desc
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
		if p.Required {
			required = append(required, name)
		}
	}
	slices.Sort(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

type CompletionRequest struct {
	Turns      []Turn
	Tools      []ToolSpec
	ToolChoice string
}

// CompletionResponse carries either Content or ToolCalls. When ToolCalls is
// non-empty Content is usually empty and is not treated as the answer.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

type DeliveryKind string

const (
	DeliveryReliable DeliveryKind = "reliable"
	DeliveryLossy    DeliveryKind = "lossy"
)

type InboundMessage struct {
	Payload        []byte
	SenderIdentity string
	Kind           DeliveryKind
	Topic          string
}

type OutboundMessage struct {
	Payload               []byte
	Kind                  DeliveryKind
	Topic                 string
	DestinationIdentities []string
}
