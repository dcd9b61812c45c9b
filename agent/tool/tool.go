package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

// Handler executes one tool call. args is the JSON object sent by the model,
// already checked against the tool's declared parameters.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type Tool struct {
	Spec    contractx.ToolSpec
	Handler Handler
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Typed builds a Tool whose handler receives args decoded into T and checked
// with T's `validate` struct tags. Decode and tag failures surface as
// ErrInvalidArguments.
func Typed[T any](spec contractx.ToolSpec, fn func(ctx context.Context, args T) (any, error)) Tool {
	return Tool{
		Spec: spec,
		Handler: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args T
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
			}
			if err := validate.Struct(&args); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidArguments, describeValidation(err))
			}
			return fn(ctx, args)
		},
	}
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
