package tool

import (
	"context"
	"sync"
)

// MockTool is a test implementation of Tool.
//
// Use MockTool in tests to verify engine and workflow behavior without
// executing real tool logic. It provides:
//   - Configurable spec and side-effect class
//   - Configurable response sequences
//   - Call history tracking
//   - Error injection
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &tool.MockTool{
//	    ToolSpec:  tool.Spec{Name: "get_pr_details", Description: "test"},
//	    ToolClass: tool.ClassReadExternal,
//	    Responses: []map[string]any{
//	        {"title": "Fix flaky test"},
//	    },
//	}
//	out, err := mock.Call(ctx, nil)
//	// Returns {"title": "Fix flaky test"}
//
// Example with error injection:
//
//	mock := &tool.MockTool{
//	    ToolSpec:  tool.Spec{Name: "post_review"},
//	    ToolClass: tool.ClassTerminalWrite,
//	    Err:       errors.New("API timeout"),
//	}
type MockTool struct {
	// ToolSpec is returned by Spec(). Name must be set.
	ToolSpec Spec

	// ToolClass is returned by Class(). Defaults to ClassReadExternal
	// when empty.
	ToolClass string

	// Responses contains the sequence of outputs to return. Each call
	// returns the next response; once consumed, the last one repeats.
	Responses []map[string]any

	// Err, if set, is returned by Call() instead of a response.
	Err error

	// ErrOnce, if true, clears Err after the first failing call so the
	// next call succeeds. Useful for exercising retry paths.
	ErrOnce bool

	// Calls tracks the history of all Call() invocations.
	Calls []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records a single invocation of Call().
type MockToolCall struct {
	Args map[string]any
}

// Spec implements the Tool interface.
func (m *MockTool) Spec() Spec {
	return m.ToolSpec
}

// Class implements the Tool interface.
func (m *MockTool) Class() string {
	if m.ToolClass == "" {
		return ClassReadExternal
	}
	return m.ToolClass
}

// Call implements the Tool interface.
//
// Records the call, then returns the configured error or the next
// response in sequence.
func (m *MockTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Args: args})

	if m.Err != nil {
		err := m.Err
		if m.ErrOnce {
			m.Err = nil
		}
		return nil, err
	}

	if len(m.Responses) == 0 {
		return map[string]any{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and resets the response index.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Call() has been invoked.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
