package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// This emitter captures the full ordered event sequence of each run and
// provides query capabilities for post-run inspection. Events are
// organized by runID for efficient retrieval and filtering.
//
// Features:
//   - Thread-safe concurrent access
//   - Query by runID with optional filtering
//   - Filter by agent, kind, turn range
//   - Clear events by runID or all events
//
// Warning: this emitter stores all events in memory. For deployments
// with many long runs, prefer a persistent store (see flow/store) or
// clear runs after consuming them.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	eng, _ := flow.New(registry, agents, flow.WithEmitter(emitter))
//
//	eng.Run(ctx, "run-001", task, initial)
//
//	events := emitter.History("run-001")
//	handoffs := emitter.HistoryWithFilter("run-001", emit.HistoryFilter{Kind: emit.KindHandoff})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events in emission order
}

// HistoryFilter specifies criteria for filtering a run's event history.
//
// All fields are optional. When multiple fields are set they are
// combined with AND logic.
type HistoryFilter struct {
	Agent   string // filter by agent name (empty = no filter)
	Kind    string // filter by event kind (empty = no filter)
	MinTurn *int   // minimum turn number (nil = no filter)
	MaxTurn *int   // maximum turn number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
//
// Returns a BufferedEmitter that stores all events in memory. Safe for
// concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// History retrieves all events for a run in emission order.
//
// Returns an empty slice if no events exist for the runID. The returned
// slice is a copy and safe to retain.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// HistoryWithFilter retrieves a run's events matching the filter, in
// emission order.
//
// All filter conditions must match for an event to be included. Returns
// an empty slice when nothing matches.
func (b *BufferedEmitter) HistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if matchesFilter(event, filter) {
			result = append(result, event)
		}
	}
	return result
}

func matchesFilter(event Event, filter HistoryFilter) bool {
	if filter.Agent != "" && event.Agent != filter.Agent {
		return false
	}
	if filter.Kind != "" && event.Kind != filter.Kind {
		return false
	}
	if filter.MinTurn != nil && event.Turn < *filter.MinTurn {
		return false
	}
	if filter.MaxTurn != nil && event.Turn > *filter.MaxTurn {
		return false
	}
	return true
}

// Clear removes stored events.
//
// If runID is non-empty, clears only that run's events. If runID is
// empty, clears all stored events across all runs.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
	} else {
		delete(b.events, runID)
	}
}
