package flow

import (
	"fmt"

	"github.com/dshills/agentflow-go/flow/emit"
	"github.com/dshills/agentflow-go/flow/store"
)

// DefaultMaxTurns is the turn budget used when WithMaxTurns is not given.
const DefaultMaxTurns = 20

// Option is a functional option for configuring an Engine.
//
// Example:
//
//	eng, err := flow.New(
//	    registry,
//	    agents,
//	    flow.WithRoot("posting"),
//	    flow.WithMaxTurns(30),
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stdout, true)),
//	)
type Option func(*engineConfig) error

// engineConfig collects options before they are applied to an Engine.
type engineConfig struct {
	root     string
	maxTurns int
	emitter  emit.Emitter
	store    store.Store
	metrics  *Metrics
}

// WithRoot selects the entry agent for every run.
//
// Default: the first agent passed to New.
func WithRoot(name string) Option {
	return func(cfg *engineConfig) error {
		if name == "" {
			return fmt.Errorf("WithRoot: name is empty")
		}
		cfg.root = name
		return nil
	}
}

// WithMaxTurns limits each run to at most n turns.
//
// Default: DefaultMaxTurns. A turn is one decision step of the active
// agent; tool execution happens within the turn that requested it.
// When the budget is exhausted the run ends with StatusExhausted.
//
// Recommended values:
//   - Simple pipelines (2-3 agents, no loops): 10-20
//   - Workflows with revision loops: agents × expected iterations
func WithMaxTurns(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return fmt.Errorf("WithMaxTurns: must be positive, got %d", n)
		}
		cfg.maxTurns = n
		return nil
	}
}

// WithEmitter sets the observability emitter for run events.
//
// Default: emit.NewNullEmitter().
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e == nil {
			return fmt.Errorf("WithEmitter: emitter is nil")
		}
		cfg.emitter = e
		return nil
	}
}

// WithStore enables run persistence: per-turn snapshots and the ordered
// event sequence are written to the store, making runs replayable via
// Transcript.
//
// Default: no persistence.
func WithStore(s store.Store) Option {
	return func(cfg *engineConfig) error {
		if s == nil {
			return fmt.Errorf("WithStore: store is nil")
		}
		cfg.store = s
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewMetrics(registry)
//	eng, err := flow.New(toolReg, agents, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
func WithMetrics(m *Metrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}
