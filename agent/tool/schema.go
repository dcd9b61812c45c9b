package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

// decodeArguments parses the model's argument payload into an object. An
// empty payload is treated as {}.
func decodeArguments(raw string) (map[string]any, json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, json.RawMessage("{}"), nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, nil, fmt.Errorf("arguments are not valid JSON: %v", err)
	}
	if dec.More() {
		return nil, nil, fmt.Errorf("arguments contain trailing data")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("arguments must be a JSON object, got %T", v)
	}
	return obj, json.RawMessage(trimmed), nil
}

// checkParams enforces required fields, primitive types and enums.
func checkParams(args map[string]any, spec contractx.ToolSpec) error {
	names := make([]string, 0, len(spec.Params))
	for name := range spec.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := spec.Params[name]
		if p == nil {
			continue
		}
		v, present := args[name]
		if !present || v == nil {
			if p.Required {
				return fmt.Errorf("missing required field: %s", name)
			}
			continue
		}
		if err := checkType(v, p.Type); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		if len(p.Enum) > 0 {
			s, _ := v.(string)
			if !slices.Contains(p.Enum, s) {
				return fmt.Errorf("field %s: %q is not one of %v", name, s, p.Enum)
			}
		}
	}
	return nil
}

func checkType(v any, want contractx.ParamType) error {
	switch want {
	case contractx.ParamString:
		if _, ok := v.(string); ok {
			return nil
		}
	case contractx.ParamNumber:
		if n, ok := v.(json.Number); ok {
			if _, err := n.Float64(); err == nil {
				return nil
			}
		}
	case contractx.ParamInteger:
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil && f == math.Trunc(f) {
				return nil
			}
		}
	case contractx.ParamBoolean:
		if _, ok := v.(bool); ok {
			return nil
		}
	case contractx.ParamObject:
		if _, ok := v.(map[string]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported parameter type %q", want)
	}
	return fmt.Errorf("expected %s but got %s", want, jsonKind(v))
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}
