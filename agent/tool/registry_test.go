package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

type echoArgs struct {
	Text  string `json:"text" validate:"required"`
	Times int    `json:"times" validate:"omitempty,min=1,max=3"`
}

func echoTool() Tool {
	return Typed(contractx.ToolSpec{
		Name: "echo",
		Params: map[string]*contractx.ParamSpec{
			"text":  {Type: contractx.ParamString, Required: true},
			"times": {Type: contractx.ParamInteger},
			"mode":  {Type: contractx.ParamString, Enum: []string{"plain", "loud"}},
		},
	}, func(_ context.Context, args echoArgs) (any, error) {
		n := args.Times
		if n == 0 {
			n = 1
		}
		return map[string]string{"echo": strings.Repeat(args.Text, n)}, nil
	})
}

func newTestRegistry(t *testing.T, tools ...Tool) *Registry {
	t.Helper()
	r := NewRegistry(WithTimeout(50 * time.Millisecond))
	for _, tl := range tools {
		if err := r.Register(tl); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	return r
}

func TestRegistryInvokeSuccessKeepsCallID(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, echoTool())
	res := r.Invoke(context.Background(), contractx.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"hi","times":2}`})
	if res.Failed() {
		t.Fatalf("Invoke() failed: %s", res.Error)
	}
	if res.CallID != "call_1" || res.Tool != "echo" {
		t.Fatalf("result identity = %s/%s", res.CallID, res.Tool)
	}
	if got := res.Payload(); got != `{"echo":"hihi"}` {
		t.Fatalf("Payload() = %s", got)
	}
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, echoTool())
	res := r.Invoke(context.Background(), contractx.ToolCall{ID: "c", Name: "teleport"})
	if res.Code != contractx.CodeUnknownTool {
		t.Fatalf("Code = %q, want unknown_tool", res.Code)
	}
	if res.CallID != "c" || !strings.Contains(res.Error, "teleport") {
		t.Fatalf("result = %#v", res)
	}

	res = r.Invoke(context.Background(), contractx.ToolCall{ID: "d", Arguments: `{}`})
	if res.Code != contractx.CodeUnknownTool || res.CallID != "d" {
		t.Fatalf("nameless call result = %#v", res)
	}
}

func TestRegistryInvokeInvalidArguments(t *testing.T) {
	t.Parallel()

	called := false
	spy := Tool{
		Spec: contractx.ToolSpec{Name: "spy", Params: map[string]*contractx.ParamSpec{
			"n": {Type: contractx.ParamInteger, Required: true},
		}},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			called = true
			return nil, nil
		},
	}
	r := newTestRegistry(t, echoTool(), spy)

	cases := []contractx.ToolCall{
		{ID: "1", Name: "spy", Arguments: `{"n":`},
		{ID: "2", Name: "spy", Arguments: `[1,2]`},
		{ID: "3", Name: "spy", Arguments: `{}`},
		{ID: "4", Name: "spy", Arguments: `{"n":"three"}`},
		{ID: "5", Name: "spy", Arguments: `{"n":2.5}`},
	}
	for _, call := range cases {
		res := r.Invoke(context.Background(), call)
		if res.Code != contractx.CodeInvalidArguments {
			t.Fatalf("call %s: Code = %q, error = %q", call.ID, res.Code, res.Error)
		}
	}
	if called {
		t.Fatal("handler ran on invalid arguments")
	}

	enum := r.Invoke(context.Background(), contractx.ToolCall{ID: "6", Name: "echo", Arguments: `{"text":"x","mode":"whisper"}`})
	if enum.Code != contractx.CodeInvalidArguments {
		t.Fatalf("enum violation Code = %q", enum.Code)
	}

	// struct tags are checked after the declared schema
	tags := r.Invoke(context.Background(), contractx.ToolCall{ID: "7", Name: "echo", Arguments: `{"text":"x","times":9}`})
	if tags.Code != contractx.CodeInvalidArguments || !strings.Contains(tags.Error, "Times") {
		t.Fatalf("tag violation = %#v", tags)
	}
}

func TestRegistryInvokeExecutionFailures(t *testing.T) {
	t.Parallel()

	failing := Tool{
		Spec: contractx.ToolSpec{Name: "down"},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, errors.New("backend returned 503")
		},
	}
	panicking := Tool{
		Spec: contractx.ToolSpec{Name: "boom"},
		Handler: func(context.Context, json.RawMessage) (any, error) {
			panic("nil map")
		},
	}
	slow := Tool{
		Spec: contractx.ToolSpec{Name: "slow"},
		Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return "late", nil
		},
	}
	r := newTestRegistry(t, failing, panicking, slow)

	for _, name := range []string{"down", "boom", "slow"} {
		res := r.Invoke(context.Background(), contractx.ToolCall{ID: name, Name: name})
		if res.Code != contractx.CodeExecutionFailed {
			t.Fatalf("%s: Code = %q, error = %q", name, res.Code, res.Error)
		}
		if res.Error == "" {
			t.Fatalf("%s: empty reason", name)
		}
	}
}

func TestRegistryRegisterRejectsDuplicates(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, echoTool())
	if err := r.Register(echoTool()); !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("Register() error = %v, want duplicate", err)
	}
	if err := r.Register(Tool{Spec: contractx.ToolSpec{Name: "nohandler"}}); err == nil {
		t.Fatal("expected error for missing handler")
	}
}

func TestRegistrySpecsKeepOrder(t *testing.T) {
	t.Parallel()

	r, err := NewCatalog(nil, nil)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	specs := r.Specs()
	want := []string{ToolGetWeather, ToolCheckAvailability, ToolCreateBooking}
	if len(specs) != len(want) {
		t.Fatalf("Specs() len = %d", len(specs))
	}
	for i, name := range want {
		if specs[i].Name != name {
			t.Fatalf("Specs()[%d] = %s, want %s", i, specs[i].Name, name)
		}
	}
	schema := specs[2].JSONSchema()
	required, _ := schema["required"].([]string)
	if strings.Join(required, ",") != "bookingDate,bookingTime,customerName,numberOfGuests" {
		t.Fatalf("required = %v", required)
	}
}
