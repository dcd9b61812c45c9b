package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
	"github.com/tanpawarit/voice-booking-agent/pkg/metrics"
)

const DefaultTimeout = 10 * time.Second

// Registry maps tool names to handlers. Invoke never returns a Go error:
// every failure comes back as a ToolResult carrying an error code.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	timeout time.Duration
	log     zerolog.Logger
}

type Option func(*Registry)

// WithTimeout bounds each call independently.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:   make(map[string]Tool),
		timeout: DefaultTimeout,
		log:     logx.Component("tool-registry"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Spec.Name)
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Specs lists the declared tools in registration order.
func (r *Registry) Specs() []contractx.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]contractx.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs
}

func (r *Registry) Invoke(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
	started := time.Now()
	res := r.invoke(ctx, call)

	status := "ok"
	if res.Failed() {
		status = string(res.Code)
	}
	label := call.Name
	if res.Code == contractx.CodeUnknownTool {
		label = "unknown"
	}
	metrics.ToolInvocations.WithLabelValues(label, status).Inc()

	evt := r.log.Debug()
	if res.Failed() {
		evt = r.log.Warn().Str("error", res.Error)
	}
	evt.Str("tool", call.Name).
		Str("call_id", call.ID).
		Str("status", status).
		Dur("took", time.Since(started)).
		Msg("tool invoked")
	return res
}

func (r *Registry) invoke(ctx context.Context, call contractx.ToolCall) contractx.ToolResult {
	res := contractx.ToolResult{CallID: call.ID, Tool: call.Name}

	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()
	if !ok {
		return fail(res, contractx.CodeUnknownTool, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name))
	}

	args, raw, err := decodeArguments(call.Arguments)
	if err != nil {
		return fail(res, contractx.CodeInvalidArguments, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}
	if err := checkParams(args, t.Spec); err != nil {
		return fail(res, contractx.CodeInvalidArguments, fmt.Errorf("%w: %v", ErrInvalidArguments, err))
	}

	out, err := r.run(ctx, t, raw)
	if err != nil {
		if errors.Is(err, ErrInvalidArguments) {
			return fail(res, contractx.CodeInvalidArguments, err)
		}
		return fail(res, contractx.CodeExecutionFailed, fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}
	res.Result = out
	return res
}

type outcome struct {
	value any
	err   error
}

func (r *Registry) run(ctx context.Context, t Tool, raw json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		v, err := t.Handler(ctx, raw)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out after %s", r.timeout)
		}
		return nil, ctx.Err()
	}
}

func fail(res contractx.ToolResult, code contractx.ErrorCode, err error) contractx.ToolResult {
	res.Code = code
	res.Error = err.Error()
	return res
}
