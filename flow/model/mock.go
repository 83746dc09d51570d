package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// It returns configured responses in order, tracks call history, and
// supports error injection, all without touching a real LLM API.
//
// Example:
//
//	mock := &MockChatModel{
//	    Responses: []ChatOut{
//	        {ToolCalls: []ToolCall{{Name: "get_pr_details"}}},
//	        {Text: "Looks good to me."},
//	    },
//	}
type MockChatModel struct {
	// Responses is the sequence of outputs to return. When exhausted,
	// the last response repeats.
	Responses []ChatOut

	// Err, if set, is returned by Chat instead of a response.
	Err error

	// Calls records every Chat invocation, success or failure.
	Calls []MockChatCall

	mu        sync.Mutex
	callIndex int
}

// MockChatCall records a single invocation of Chat.
type MockChatCall struct {
	Messages []Message
	Tools    []ToolSpec
}

// Chat implements the ChatModel interface.
func (m *MockChatModel) Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error) {
	if ctx.Err() != nil {
		return ChatOut{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockChatCall{Messages: messages, Tools: tools})

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Responses) == 0 {
		return ChatOut{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and restarts the response sequence.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns how many times Chat has been called.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
