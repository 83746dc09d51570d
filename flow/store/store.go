// Package store provides run persistence backends for agentflow-go.
//
// A Store records two things per run: the shared state snapshot after
// each turn, and the ordered event sequence. Together they make a run
// resumable and replayable after the fact.
package store

import (
	"context"
	"errors"

	"github.com/dshills/agentflow-go/flow/emit"
)

// ErrNotFound is returned when a requested run ID does not exist.
var ErrNotFound = errors.New("not found")

func errClosed() error {
	return errors.New("store is closed")
}

// Store provides persistence for run state and events.
//
// Implementations:
//   - MemoryStore: in-process, for testing and ephemeral runs
//   - SQLiteStore: single-file database, zero-setup local persistence
//   - MySQLStore: shared database for multi-process deployments
type Store interface {
	// SaveTurn persists the shared state snapshot after a turn.
	// Each snapshot is identified by runID + turn number; saving the
	// same turn twice replaces the earlier snapshot.
	//
	// Parameters:
	//   - runID: unique identifier for the run
	//   - turn: 1-indexed turn number
	//   - agent: the agent active during the turn
	//   - state: state snapshot after the turn (JSON-serializable)
	SaveTurn(ctx context.Context, runID string, turn int, agent string, state map[string]any) error

	// LoadLatest retrieves the most recent state snapshot for a run.
	//
	// Returns:
	//   - state: the latest persisted snapshot
	//   - turn: the turn number of the returned snapshot
	//   - error: ErrNotFound if the runID has no snapshots
	LoadLatest(ctx context.Context, runID string) (state map[string]any, turn int, err error)

	// AppendEvents appends events to the run's ordered event sequence.
	// Order within a call and across calls is preserved.
	AppendEvents(ctx context.Context, runID string, events []emit.Event) error

	// Events returns the run's full event sequence in append order.
	//
	// Returns ErrNotFound if the runID has no events.
	Events(ctx context.Context, runID string) ([]emit.Event, error)

	// Close releases the store's resources. The store is unusable
	// afterwards.
	Close() error
}

// TurnRecord represents one persisted turn. Used internally by Store
// implementations.
type TurnRecord struct {
	// Turn is the 1-indexed turn number.
	Turn int

	// Agent names the agent active during the turn.
	Agent string

	// State is the snapshot after the turn completed.
	State map[string]any
}
