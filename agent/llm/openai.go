package llm

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

// OpenAICompletion calls the chat-completions endpoint through openai-go.
type OpenAICompletion struct {
	client      *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Completion = (*OpenAICompletion)(nil)

func NewOpenAICompletion(client *openaisdk.Client, cfg Config) *OpenAICompletion {
	return &OpenAICompletion{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: float64(cfg.Temperature),
		maxTokens:   int64(cfg.MaxCompletionToken),
	}
}

func (o *OpenAICompletion) Complete(ctx context.Context, req contractx.CompletionRequest) (contractx.CompletionResponse, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(o.model),
		Messages:    toOpenAIMessages(req.Turns),
		Temperature: openaisdk.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(o.maxTokens)
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
		choice := req.ToolChoice
		if choice == "" {
			choice = contractx.ToolChoiceAuto
		}
		params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openaisdk.String(choice),
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return contractx.CompletionResponse{}, fmt.Errorf("%w: completion has no choices", contractx.ErrSchemaViolation)
	}

	msg := resp.Choices[0].Message
	out := contractx.CompletionResponse{Content: strings.TrimSpace(msg.Content)}
	for i, c := range msg.ToolCalls {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		out.ToolCalls = append(out.ToolCalls, contractx.ToolCall{
			ID:        id,
			Name:      strings.TrimSpace(c.Function.Name),
			Arguments: c.Function.Arguments,
		})
	}
	return out, nil
}

func toOpenAITools(specs []contractx.ToolSpec) []openaisdk.ChatCompletionToolParam {
	tools := make([]openaisdk.ChatCompletionToolParam, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        s.Name,
				Description: openaisdk.String(s.Description),
				Parameters:  openaisdk.FunctionParameters(s.JSONSchema()),
			},
		})
	}
	return tools
}

func toOpenAIMessages(turns []contractx.Turn) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(t.Content))
		case contractx.RoleUser:
			out = append(out, openaisdk.UserMessage(t.Content))
		case contractx.RoleAssistant:
			asst := openaisdk.ChatCompletionAssistantMessageParam{}
			if t.Content != "" {
				asst.Content.OfString = openaisdk.String(t.Content)
			}
			for _, c := range t.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: c.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      c.Name,
						Arguments: c.Arguments,
					},
				})
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case contractx.RoleTool:
			out = append(out, openaisdk.ToolMessage(t.Content, t.ToolCallID))
		}
	}
	return out
}
