package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/agentflow-go/flow/emit"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It stores turn snapshots and run events in a single-file database.
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments
//   - Local runs requiring durable history
//
// SQLiteStore uses WAL mode for concurrent reads.
//
// Schema:
//   - run_turns: per-turn state snapshots
//   - run_events: ordered event sequence per run
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./runs.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and required
// tables, enables WAL mode, and sets a busy timeout.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./runs.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	turnsTable := `
		CREATE TABLE IF NOT EXISTS run_turns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			turn INTEGER NOT NULL,
			agent TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, turn)
		)
	`
	if _, err := s.db.ExecContext(ctx, turnsTable); err != nil {
		return fmt.Errorf("failed to create run_turns table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_turns_run_id ON run_turns(run_id, turn)"); err != nil {
		return fmt.Errorf("failed to create idx_turns_run_id: %w", err)
	}

	eventsTable := `
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			event TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, seq)
		)
	`
	if _, err := s.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("failed to create run_events table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_events_run_id ON run_events(run_id, seq)"); err != nil {
		return fmt.Errorf("failed to create idx_events_run_id: %w", err)
	}

	return nil
}

// SaveTurn persists a turn snapshot (implements Store).
//
// If a snapshot with the same runID and turn already exists, it is
// replaced.
func (s *SQLiteStore) SaveTurn(ctx context.Context, runID string, turn int, agent string, state map[string]any) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errClosed()
	}
	s.mu.RUnlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO run_turns (run_id, turn, agent, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, turn) DO UPDATE SET
			agent = excluded.agent,
			state = excluded.state
	`
	if _, err := s.db.ExecContext(ctx, query, runID, turn, agent, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// LoadLatest retrieves the snapshot with the highest turn number
// (implements Store).
//
// Returns ErrNotFound if no snapshots exist for the runID.
func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (map[string]any, int, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, 0, errClosed()
	}
	s.mu.RUnlock()

	query := `
		SELECT turn, state
		FROM run_turns
		WHERE run_id = ?
		ORDER BY turn DESC
		LIMIT 1
	`

	var turn int
	var stateJSON string
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&turn, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load latest turn: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, turn, nil
}

// AppendEvents appends events to the run's sequence (implements Store).
//
// The batch is written in one transaction so a crash cannot leave a
// partially appended batch.
func (s *SQLiteStore) AppendEvents(ctx context.Context, runID string, events []emit.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errClosed()
	}
	s.mu.RUnlock()

	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	row := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM run_events WHERE run_id = ?", runID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("failed to read event sequence: %w", err)
	}

	for _, event := range events {
		next++
		eventJSON, err := json.Marshal(storedEvent{
			RunID: event.RunID,
			Turn:  event.Turn,
			Agent: event.Agent,
			Kind:  event.Kind,
			Msg:   event.Msg,
			Meta:  event.Meta,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_events (run_id, seq, event) VALUES (?, ?, ?)",
			runID, next, string(eventJSON)); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// Events returns the run's event sequence in append order (implements
// Store).
//
// Returns ErrNotFound if the runID has no events.
func (s *SQLiteStore) Events(ctx context.Context, runID string) ([]emit.Event, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errClosed()
	}
	s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT event FROM run_events WHERE run_id = ? ORDER BY seq ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		var stored storedEvent
		if err := json.Unmarshal([]byte(eventJSON), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, emit.Event{
			RunID: stored.RunID,
			Turn:  stored.Turn,
			Agent: stored.Agent,
			Kind:  stored.Kind,
			Msg:   stored.Msg,
			Meta:  stored.Meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

// Close closes the database connection (implements Store).
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// storedEvent is the JSON wire form of an emit.Event in database rows.
type storedEvent struct {
	RunID string         `json:"runID"`
	Turn  int            `json:"turn"`
	Agent string         `json:"agent"`
	Kind  string         `json:"kind"`
	Msg   string         `json:"msg,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}
