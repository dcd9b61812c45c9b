package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

// EinoCompletion drives an eino tool-calling chat model. Tool bindings are
// cached per tool set since WithTools returns a new model instance.
type EinoCompletion struct {
	chatModel einomodel.ToolCallingChatModel

	mu       sync.Mutex
	boundKey string
	bound    einomodel.ToolCallingChatModel
}

var _ contractx.Completion = (*EinoCompletion)(nil)

func NewEinoCompletion(chatModel einomodel.ToolCallingChatModel) *EinoCompletion {
	return &EinoCompletion{chatModel: chatModel}
}

func (e *EinoCompletion) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	m, err := e.modelFor(req.Tools)
	if err != nil {
		return contractx.CompletionResponse{}, err
	}

	var opts []einomodel.Option
	if len(req.Tools) > 0 {
		opts = append(opts, einomodel.WithToolChoice(toEinoToolChoice(req.ToolChoice)))
	}
	msg, err := m.Generate(ctx, toEinoMessages(req.Turns), opts...)
	if err != nil {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if msg == nil {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: empty completion", contractx.ErrSchemaViolation)
	}
	return fromEinoMessage(msg)
}

func (e *EinoCompletion) modelFor(specs []contractx.ToolSpec) (einomodel.ToolCallingChatModel, error) {
	if len(specs) == 0 {
		return e.chatModel, nil
	}

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	key := strings.Join(names, ",")

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bound != nil && e.boundKey == key {
		return e.bound, nil
	}
	bound, err := e.chatModel.WithTools(ToToolInfos(specs))
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}
	e.bound, e.boundKey = bound, key
	return bound, nil
}

func toEinoToolChoice(choice string) schema.ToolChoice {
	switch choice {
	case contractx.ToolChoiceNone:
		return schema.ToolChoiceForbidden
	case contractx.ToolChoiceRequired:
		return schema.ToolChoiceForced
	default:
		return schema.ToolChoiceAllowed
	}
}

// ToToolInfos converts tool specs into eino tool declarations.
func ToToolInfos(specs []contractx.ToolSpec) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		params := make(map[string]*schema.ParameterInfo, len(s.Params))
		for name, p := range s.Params {
			if p == nil {
				continue
			}
			params[name] = &schema.ParameterInfo{
				Type:     schema.DataType(p.Type),
				Desc:     p.Desc,
				Required: p.Required,
				Enum:     p.Enum,
			}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        s.Name,
			Desc:        s.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

func toEinoMessages(turns []contractx.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(t.Content))
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(t.Content))
		case contractx.RoleAssistant:
			msg := &schema.Message{Role: schema.Assistant, Content: t.Content}
			for _, c := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
					ID:   c.ID,
					Type: "function",
					Function: schema.FunctionCall{
						Name:      c.Name,
						Arguments: c.Arguments,
					},
				})
			}
			out = append(out, msg)
		case contractx.RoleTool:
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				Content:    t.Content,
				ToolCallID: t.ToolCallID,
			})
		}
	}
	return out
}

// fromEinoMessage keeps nameless tool calls; the registry answers them with
// an unknown_tool result.
func fromEinoMessage(msg *schema.Message) (contractx.CompletionResponse, error) {
	resp := contractx.CompletionResponse{Content: strings.TrimSpace(msg.Content)}
	for i, c := range msg.ToolCalls {
		name := strings.TrimSpace(c.Function.Name)
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		resp.ToolCalls = append(resp.ToolCalls, contractx.ToolCall{
			ID:        id,
			Name:      name,
			Arguments: c.Function.Arguments,
		})
	}
	return resp, nil
}
