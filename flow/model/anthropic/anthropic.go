// Package anthropic provides a ChatModel adapter for the Anthropic API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dshills/agentflow-go/flow/model"
)

// DefaultMaxTokens caps response length when none is configured.
const DefaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Anthropic's API.
//
// Provides access to Claude models with:
//   - Tool/function calling support
//   - System prompt handling
//   - Context cancellation
//
// Example usage:
//
//	apiKey := os.Getenv("ANTHROPIC_API_KEY")
//	m := anthropic.NewChatModel(apiKey, "claude-sonnet-4-20250514")
//
//	out, err := m.Chat(ctx, messages, tools)
//	if err != nil {
//	    log.Fatal(err)
//	}
type ChatModel struct {
	apiKey    string
	modelName string
	maxTokens int64
	client    anthropicClient
}

// anthropicClient defines the interface for Anthropic API operations.
// This allows for easy mocking in tests.
type anthropicClient interface {
	createMessage(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a new Anthropic ChatModel.
//
// Parameters:
//   - apiKey: Anthropic API key
//   - modelName: model to use (e.g., "claude-sonnet-4-20250514"). Empty
//     string uses the default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-20250514"
	}
	m := &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		maxTokens: DefaultMaxTokens,
	}
	m.client = &defaultClient{apiKey: apiKey, modelName: modelName, maxTokens: m.maxTokens}
	return m
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	return m.client.createMessage(ctx, messages, tools)
}

// defaultClient wraps the official Anthropic SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
	maxTokens int64
}

func (c *defaultClient) createMessage(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		MaxTokens: c.maxTokens,
		Messages:  convertMessages(messages),
	}
	if system := systemPrompt(messages); system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp)
}

// systemPrompt concatenates system messages into the dedicated system
// field Anthropic expects.
func systemPrompt(messages []model.Message) string {
	var system string
	for _, msg := range messages {
		if msg.Role != model.RoleSystem || msg.Content == "" {
			continue
		}
		if system != "" {
			system += "\n\n"
		}
		system += msg.Content
	}
	return system
}

// convertMessages converts non-system messages to Anthropic message
// params, preserving order.
func convertMessages(messages []model.Message) []anthropicsdk.MessageParam {
	var result []anthropicsdk.MessageParam
	for _, msg := range messages {
		if msg.Content == "" || msg.Role == model.RoleSystem {
			continue
		}
		block := anthropicsdk.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			result = append(result, anthropicsdk.NewAssistantMessage(block))
		} else {
			result = append(result, anthropicsdk.NewUserMessage(block))
		}
	}
	return result
}

// convertTools converts ToolSpecs to Anthropic tool params.
func convertTools(tools []model.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := anthropicsdk.ToolInputSchemaParam{Type: "object"}
		if props, ok := tool.Schema["properties"].(map[string]any); ok {
			schema.Properties = props
		}
		switch required := tool.Schema["required"].(type) {
		case []string:
			schema.Required = required
		case []any:
			for _, v := range required {
				if s, ok := v.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: schema,
			},
		}
	}
	return result
}

// convertResponse converts an Anthropic response to ChatOut.
func convertResponse(resp *anthropicsdk.Message) (model.ChatOut, error) {
	out := model.ChatOut{}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text := block.AsText().Text
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += text
		case "tool_use":
			use := block.AsToolUse()
			input, err := decodeInput(use.Input)
			if err != nil {
				return model.ChatOut{}, fmt.Errorf("malformed input for tool %q: %w", use.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  use.Name,
				Input: input,
			})
		}
	}
	return out, nil
}

// decodeInput parses a tool_use block's JSON input payload.
func decodeInput(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	return input, nil
}
