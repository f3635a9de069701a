package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-level metrics aggregator. All families register
// with the default Prometheus registry and surface on the REST transport's
// /metrics endpoint.
type Metrics struct {
	// ToolCalls counts tool invocations.
	// Labels: tool, status (success|error)
	ToolCalls *prometheus.CounterVec

	// ToolDuration measures tool call latency in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// ActiveSessions tracks currently active browser sessions.
	ActiveSessions prometheus.Gauge

	// SessionsEvicted counts sessions removed by admission or GC.
	// Labels: reason (overflow|max_age)
	SessionsEvicted *prometheus.CounterVec

	// StepLatency measures step latency in seconds.
	StepLatency prometheus.Histogram

	// ActionFailures counts failed actions by action name.
	ActionFailures *prometheus.CounterVec

	// FramesCaptured counts frames retained by the capture coordinator.
	FramesCaptured prometheus.Counter

	// FramesDropped counts frames evicted from the frame ring. The
	// coordinator reports deltas, so this stays monotonic.
	FramesDropped prometheus.Counter

	// PolicyDenials counts steps short-circuited by the policy gate.
	PolicyDenials prometheus.Counter
}

// NewMetrics creates and registers all metric families. Call once at
// startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_tool_calls_total",
				Help: "Total number of tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webagent_tool_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"tool"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "webagent_active_sessions",
				Help: "Current number of active browser sessions",
			},
		),

		SessionsEvicted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_sessions_evicted_total",
				Help: "Total number of sessions evicted by reason",
			},
			[]string{"reason"},
		),

		StepLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webagent_step_latency_seconds",
				Help:    "End-to-end step latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 120},
			},
		),

		ActionFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webagent_action_failures_total",
				Help: "Total number of failed actions by action name",
			},
			[]string{"action"},
		),

		FramesCaptured: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_frames_captured_total",
				Help: "Total number of screencast frames retained",
			},
		),

		FramesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_frames_dropped_total",
				Help: "Total number of frames evicted from frame rings",
			},
		),

		PolicyDenials: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "webagent_policy_denials_total",
				Help: "Total number of steps denied by the policy gate",
			},
		),
	}
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(durationSeconds)
}

// RecordActionFailure records one failed action.
func (m *Metrics) RecordActionFailure(action string) {
	if m == nil {
		return
	}
	m.ActionFailures.WithLabelValues(action).Inc()
}

// RecordFrame records one retained frame plus any newly observed drops.
func (m *Metrics) RecordFrame(droppedDelta int64) {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	if droppedDelta > 0 {
		m.FramesDropped.Add(float64(droppedDelta))
	}
}

// SessionStarted increments the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge.
func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// SessionEvicted counts one eviction by reason.
func (m *Metrics) SessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.SessionsEvicted.WithLabelValues(reason).Inc()
}

// RecordStepLatency records one step's latency.
func (m *Metrics) RecordStepLatency(seconds float64) {
	if m == nil {
		return
	}
	m.StepLatency.Observe(seconds)
}

// RecordPolicyDenial counts one policy-denied step.
func (m *Metrics) RecordPolicyDenial() {
	if m == nil {
		return
	}
	m.PolicyDenials.Inc()
}
