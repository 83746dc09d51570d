package flow

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is the shared mutable record passed across every turn of a run.
//
// It is an open string-keyed map: keys are not fixed up front, and values
// may be strings or nested JSON-serializable structures. Exactly one State
// instance exists per run. All mutation goes through Set; readers use Get
// or GetString and treat absence as a recoverable condition rather than an
// error.
//
// State is deliberately unsynchronized. The engine guarantees that exactly
// one agent is active per run, so there is never a concurrent writer. Do
// not share a State between runs.
type State struct {
	values map[string]any
}

// NewState creates a State seeded with the given initial key/value pairs.
// A nil initial map produces an empty State.
func NewState(initial map[string]any) *State {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &State{values: values}
}

// Get returns the value stored under key and whether the key exists.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the string stored under key, or "" when the key is
// absent or holds a non-string value. Callers that need to distinguish
// absence should use Get.
func (s *State) GetString(key string) string {
	v, ok := s.values[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return str
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(key string, value any) {
	s.values[key] = value
}

// Keys returns the stored keys in sorted order.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (s *State) Len() int {
	return len(s.values)
}

// Snapshot returns a deep copy of the stored values via a JSON round-trip.
// The copy is independent of the live State, so it can be persisted or
// returned to a caller while the run keeps mutating.
//
// Values that do not marshal to JSON (channels, functions) cause an error;
// workflow state is expected to be plain data.
func (s *State) Snapshot() (map[string]any, error) {
	data, err := json.Marshal(s.values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied map[string]any
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return copied, nil
}
