// Package model provides the LLM chat abstraction used by agent deciders.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// It abstracts the differences between providers (OpenAI, Anthropic,
// Google) behind a single call. Implementations should:
//   - Handle provider-specific authentication
//   - Convert the standard Message format to the provider's wire format
//   - Parse provider responses back into ChatOut
//   - Respect context cancellation and timeouts
//   - Retry transient failures (rate limits, 5xx) with backoff
//
// Example:
//
//	m := openai.NewChatModel(apiKey, "gpt-4o-mini")
//	out, err := m.Chat(ctx, []model.Message{
//	    {Role: model.RoleUser, Content: "Summarize this diff."},
//	}, nil)
type ChatModel interface {
	// Chat sends the conversation to the provider and returns its
	// response. The model may answer with text, tool calls, or both.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message is a single entry in an LLM conversation. Messages follow the
// common chat format shared by the major providers: an ordered sequence of
// system, user, and assistant entries.
type Message struct {
	// Role identifies the sender; use the Role* constants.
	Role string

	// Content is the message text.
	Content string
}

// Standard role constants for LLM conversations.
const (
	// RoleSystem sets context or instructions, typically first.
	RoleSystem = "system"

	// RoleUser carries user input, questions, or tool results.
	RoleUser = "user"

	// RoleAssistant carries model output.
	RoleAssistant = "assistant"
)

// ToolSpec describes a tool the model may call. The Schema field is a
// JSON Schema object describing the expected input parameters.
type ToolSpec struct {
	// Name uniquely identifies the tool (alphanumeric + underscores).
	Name string

	// Description explains what the tool does; the model uses it to
	// decide when to call the tool.
	Description string

	// Schema is the JSON Schema for the tool's input. Optional for
	// parameterless tools.
	Schema map[string]any
}

// ChatOut is the output of one chat completion: generated text, tool call
// requests, or both.
type ChatOut struct {
	// Text is the model's generated response. May be empty when the
	// model only requests tool calls.
	Text string

	// ToolCalls lists the tools the model wants invoked. Empty when the
	// model answered directly.
	ToolCalls []ToolCall
}

// ToolCall is a request from the model to invoke a named tool with the
// given input. The input structure matches the tool's declared Schema.
type ToolCall struct {
	// Name matches a ToolSpec.Name from the advertised tools.
	Name string

	// Input contains the call parameters; may be nil.
	Input map[string]any
}
