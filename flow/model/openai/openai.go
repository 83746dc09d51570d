// Package openai provides a ChatModel adapter for the OpenAI API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/agentflow-go/flow/model"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Provides access to OpenAI models with:
//   - Tool/function calling support
//   - Automatic retry on transient failures
//   - Rate limit backoff
//
// Example usage:
//
//	apiKey := os.Getenv("OPENAI_API_KEY")
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//
//	out, err := m.Chat(ctx, messages, tools)
//	if err != nil {
//	    log.Fatal(err)
//	}
type ChatModel struct {
	apiKey     string
	modelName  string
	maxRetries int
	retryDelay time.Duration
	client     openaiClient
}

// openaiClient defines the interface for OpenAI API operations. This
// allows for easy mocking in tests.
type openaiClient interface {
	createResponse(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a new OpenAI ChatModel.
//
// Parameters:
//   - apiKey: OpenAI API key
//   - modelName: model to use (e.g., "gpt-4o"). Empty string uses the
//     default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &ChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		maxRetries: 3,
		retryDelay: time.Second,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements the model.ChatModel interface. Transient errors and
// rate limits are retried up to the configured maximum.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return model.ChatOut{}, ctx.Err()
		}

		out, err := m.client.createResponse(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransientError(err) && !isRateLimitError(err) {
			return model.ChatOut{}, err
		}
		if attempt == m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return model.ChatOut{}, fmt.Errorf("openai request failed after %d attempts: %w", m.maxRetries+1, lastErr)
}

// isTransientError reports whether an error is worth retrying.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isRateLimitError reports whether an error is a rate limit response.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}

// defaultClient wraps the official OpenAI SDK client using the
// Responses API.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createResponse(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := responses.ResponseNewParams{
		Model: c.modelName,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openaisdk.String(flattenMessages(messages)),
		},
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Responses.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai API error: %w", err)
	}
	return convertResponse(resp)
}

// flattenMessages folds the conversation into a single prompt string.
// The Responses API accepts structured input too, but a flattened
// transcript keeps role handling uniform across providers.
func flattenMessages(messages []model.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case model.RoleSystem:
			sb.WriteString("System: ")
		case model.RoleAssistant:
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return strings.TrimSuffix(sb.String(), "\n\n")
}

// convertTools converts ToolSpecs to OpenAI function tool params.
func convertTools(tools []model.ToolSpec) []responses.ToolUnionParam {
	result := make([]responses.ToolUnionParam, len(tools))
	for i, tool := range tools {
		result[i] = responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  openaisdk.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

// convertResponse converts an OpenAI response to ChatOut.
func convertResponse(resp *responses.Response) (model.ChatOut, error) {
	out := model.ChatOut{}

	for _, item := range resp.Output {
		if item.Type != "function_call" {
			continue
		}
		call := item.AsFunctionCall()
		input, err := decodeArguments(call.Arguments)
		if err != nil {
			return model.ChatOut{}, fmt.Errorf("malformed arguments for tool %q: %w", call.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Name:  call.Name,
			Input: input,
		})
	}

	if len(out.ToolCalls) == 0 {
		out.Text = resp.OutputText()
	}
	return out, nil
}

// decodeArguments parses a tool call's JSON argument payload.
func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
