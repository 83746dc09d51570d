package store

import (
	"context"
	"sync"

	"github.com/dshills/agentflow-go/flow/emit"
)

// MemStore is an in-memory implementation of Store.
//
// It keeps turn snapshots and event sequences in maps. Designed for:
//   - Testing and development
//   - Short-lived runs where persistence isn't required
//
// MemStore is thread-safe and supports concurrent access.
//
// Limitations:
//   - Data is lost when the process terminates
//   - Memory usage grows with run history
//
// For durable persistence use SQLiteStore or MySQLStore.
type MemStore struct {
	mu     sync.RWMutex
	turns  map[string][]TurnRecord // runID -> turns in save order
	events map[string][]emit.Event // runID -> events in append order
	closed bool
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore()
//	eng, err := flow.New(registry, agents, flow.WithStore(st))
func NewMemStore() *MemStore {
	return &MemStore{
		turns:  make(map[string][]TurnRecord),
		events: make(map[string][]emit.Event),
	}
}

// SaveTurn persists a turn snapshot (implements Store).
//
// A snapshot for an existing runID+turn replaces the earlier one.
func (m *MemStore) SaveTurn(_ context.Context, runID string, turn int, agent string, state map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed()
	}

	record := TurnRecord{Turn: turn, Agent: agent, State: state}

	for i, existing := range m.turns[runID] {
		if existing.Turn == turn {
			m.turns[runID][i] = record
			return nil
		}
	}
	m.turns[runID] = append(m.turns[runID], record)
	return nil
}

// LoadLatest retrieves the snapshot with the highest turn number
// (implements Store).
func (m *MemStore) LoadLatest(_ context.Context, runID string) (map[string]any, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, 0, errClosed()
	}

	records := m.turns[runID]
	if len(records) == 0 {
		return nil, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Turn > latest.Turn {
			latest = record
		}
	}
	return latest.State, latest.Turn, nil
}

// AppendEvents appends events to the run's sequence (implements Store).
func (m *MemStore) AppendEvents(_ context.Context, runID string, events []emit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed()
	}

	m.events[runID] = append(m.events[runID], events...)
	return nil
}

// Events returns the run's event sequence in append order (implements
// Store).
func (m *MemStore) Events(_ context.Context, runID string) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed()
	}

	events, exists := m.events[runID]
	if !exists {
		return nil, ErrNotFound
	}

	result := make([]emit.Event, len(events))
	copy(result, events)
	return result, nil
}

// Close marks the store closed (implements Store).
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
