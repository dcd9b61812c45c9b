package orchestratornode

import (
	"context"

	"golang.org/x/sync/errgroup"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
)

// ExecuteTools runs one batch of tool calls with at most limit in flight.
// Results are returned in request order regardless of completion order.
func ExecuteTools(ctx context.Context, tools contractx.ToolInvoker, calls []contractx.ToolCall, limit int) []contractx.ToolResult {
	results := make([]contractx.ToolResult, len(calls))
	if len(calls) == 1 {
		results[0] = tools.Invoke(ctx, calls[0])
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = tools.Invoke(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
