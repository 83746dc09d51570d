package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/agentflow-go/flow/emit"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Production deployments requiring durable run history
//   - Multi-process deployments sharing one database
//   - Audit trails over posted reviews
//
// MySQLStore uses connection pooling and transactions for reliability.
//
// Schema:
//   - run_turns: per-turn state snapshots
//   - run_events: ordered event sequence per run
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example DSNs:
//
//	user:password@tcp(localhost:3306)/agentflow
//	user:password@tcp(127.0.0.1:3306)/agentflow?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment:
//
//	dsn := os.Getenv("MYSQL_DSN")
//	st, err := store.NewMySQLStore(dsn)
//
// The store automatically creates required tables and configures
// connection pooling.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	turnsTable := `
		CREATE TABLE IF NOT EXISTS run_turns (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			turn INT NOT NULL,
			agent VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_turns_run (run_id, turn),
			UNIQUE KEY unique_run_turn (run_id, turn)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, turnsTable); err != nil {
		return fmt.Errorf("failed to create run_turns table: %w", err)
	}

	eventsTable := `
		CREATE TABLE IF NOT EXISTS run_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			seq INT NOT NULL,
			event JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_events_run (run_id, seq),
			UNIQUE KEY unique_run_seq (run_id, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("failed to create run_events table: %w", err)
	}

	return nil
}

// SaveTurn persists a turn snapshot (implements Store).
//
// If a snapshot with the same runID and turn already exists, it is
// replaced.
func (m *MySQLStore) SaveTurn(ctx context.Context, runID string, turn int, agent string, state map[string]any) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return errClosed()
	}
	m.mu.RUnlock()

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO run_turns (run_id, turn, agent, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			agent = VALUES(agent),
			state = VALUES(state)
	`
	if _, err := m.db.ExecContext(ctx, query, runID, turn, agent, string(stateJSON)); err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	return nil
}

// LoadLatest retrieves the snapshot with the highest turn number
// (implements Store).
//
// Returns ErrNotFound if no snapshots exist for the runID.
func (m *MySQLStore) LoadLatest(ctx context.Context, runID string) (map[string]any, int, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, 0, errClosed()
	}
	m.mu.RUnlock()

	query := `
		SELECT turn, state
		FROM run_turns
		WHERE run_id = ?
		ORDER BY turn DESC
		LIMIT 1
	`

	var turn int
	var stateJSON string
	err := m.db.QueryRowContext(ctx, query, runID).Scan(&turn, &stateJSON)
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

// AppendEvents appends events to the run's sequence in one transaction
// (implements Store).
func (m *MySQLStore) AppendEvents(ctx context.Context, runID string, events []emit.Event) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return errClosed()
	}
	m.mu.RUnlock()

	if len(events) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM run_events WHERE run_id = ? FOR UPDATE", runID)
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
func (m *MySQLStore) Events(ctx context.Context, runID string) ([]emit.Event, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, errClosed()
	}
	m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx,
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
func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
