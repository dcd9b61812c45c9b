// Package metrics provides Prometheus collectors for the booking agent and
// its backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DialogueTurns counts finished orchestration loops by outcome
	// (done, degraded, model_error).
	DialogueTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_dialogue_turns_total",
			Help: "Total number of completed dialogue turns by outcome",
		},
		[]string{"outcome"},
	)

	// ModelRoundTrips observes how many completion calls one turn needed.
	ModelRoundTrips = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_model_round_trips",
			Help:    "Completion calls per dialogue turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// CompletionDuration tracks latency of completion-service calls.
	CompletionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_completion_duration_seconds",
			Help:    "Duration of completion-service calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ToolInvocations counts tool calls by tool name and status.
	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_invocations_total",
			Help: "Total number of tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	// ActiveSessions tracks participants with a live transcript.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_active_sessions",
			Help: "Number of participant sessions held in memory",
		},
	)

	// SessionsEvicted counts idle sessions removed by the sweeper.
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agent_sessions_evicted_total",
			Help: "Total number of idle sessions evicted",
		},
	)

	// RepliesPublished counts outbound replies by result (ok, failed).
	RepliesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_replies_published_total",
			Help: "Total number of replies published to the transport",
		},
		[]string{"result"},
	)

	// Bookings counts booking attempts on the backend by result
	// (created, conflict, invalid, failed).
	Bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_bookings_total",
			Help: "Total number of booking attempts by result",
		},
		[]string{"result"},
	)

	// Notifications counts notification dispatches by channel and result.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_notifications_total",
			Help: "Total number of notifications by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// RecordSessionCreated increments the active session gauge.
func RecordSessionCreated() {
	ActiveSessions.Inc()
}

// RecordSessionEvicted decrements the active session gauge and counts the eviction.
func RecordSessionEvicted() {
	SessionsEvicted.Inc()
	ActiveSessions.Dec()
}
