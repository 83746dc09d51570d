package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for run monitoring.
//
// Metrics exposed (all namespaced with "agentflow_"):
//
//  1. runs_total (counter): completed runs by terminal status.
//     Labels: status (success/exhausted/failed).
//
//  2. turns_total (counter): turns taken across all runs.
//
//  3. tool_latency_ms (histogram): tool call duration in milliseconds.
//     Labels: tool, status (success/error).
//
//  4. handoffs_total (counter): validated control transfers.
//     Labels: from, to.
//
//  5. handoffs_rejected_total (counter): handoffs to undeclared targets.
//     Labels: from.
//
//  6. decision_latency_ms (histogram): decider call duration.
//     Labels: agent.
//
// All methods are nil-safe: a nil *Metrics records nothing, so the
// engine never needs to branch on configuration.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	eng, _ := flow.New(toolReg, agents, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type Metrics struct {
	runs             *prometheus.CounterVec
	turns            prometheus.Counter
	toolLatency      *prometheus.HistogramVec
	handoffs         *prometheus.CounterVec
	handoffsRejected *prometheus.CounterVec
	decisionLatency  *prometheus.HistogramVec
}

// NewMetrics creates and registers all run metrics with the provided
// Prometheus registry.
//
// Parameters:
//   - registry: registry to register with (nil uses the default
//     registerer)
//
// Returns a fully initialized metrics collector.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	m := &Metrics{}

	m.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "runs_total",
		Help:      "Completed runs by terminal status",
	}, []string{"status"})

	m.turns = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "turns_total",
		Help:      "Turns taken across all runs",
	})

	m.toolLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentflow",
		Name:      "tool_latency_ms",
		Help:      "Tool call duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
	}, []string{"tool", "status"})

	m.handoffs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "handoffs_total",
		Help:      "Validated control transfers between agents",
	}, []string{"from", "to"})

	m.handoffsRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentflow",
		Name:      "handoffs_rejected_total",
		Help:      "Handoff requests naming undeclared targets",
	}, []string{"from"})

	m.decisionLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "agentflow",
		Name:      "decision_latency_ms",
		Help:      "Decider call duration in milliseconds",
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"agent"})

	return m
}

// RunCompleted records a run reaching a terminal status.
func (m *Metrics) RunCompleted(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// TurnTaken records one decision step.
func (m *Metrics) TurnTaken() {
	if m == nil {
		return
	}
	m.turns.Inc()
}

// ToolCalled records a tool call's duration and outcome.
func (m *Metrics) ToolCalled(tool, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.toolLatency.WithLabelValues(tool, status).Observe(float64(latency.Milliseconds()))
}

// HandoffMade records a validated handoff from one agent to another.
func (m *Metrics) HandoffMade(from, to string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(from, to).Inc()
}

// HandoffRejected records a handoff naming an undeclared target.
func (m *Metrics) HandoffRejected(from string) {
	if m == nil {
		return
	}
	m.handoffsRejected.WithLabelValues(from).Inc()
}

// ObserveDecision records how long an agent's decider took.
func (m *Metrics) ObserveDecision(agent string, latency time.Duration) {
	if m == nil {
		return
	}
	m.decisionLatency.WithLabelValues(agent).Observe(float64(latency.Milliseconds()))
}
