// Package google provides a ChatModel adapter for the Google Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/agentflow-go/flow/model"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// Provides access to Gemini models with:
//   - Tool/function calling support
//   - Safety filter handling
//   - Context cancellation
//
// Example usage:
//
//	apiKey := os.Getenv("GOOGLE_API_KEY")
//	m := google.NewChatModel(apiKey, "gemini-2.5-flash")
//
//	out, err := m.Chat(ctx, messages, tools)
//	if err != nil {
//	    var safetyErr *SafetyFilterError
//	    if errors.As(err, &safetyErr) {
//	        log.Printf("content blocked: %s", safetyErr.Category())
//	        return
//	    }
//	    log.Fatal(err)
//	}
type ChatModel struct {
	apiKey    string
	modelName string
	client    googleClient
}

// googleClient defines the interface for Gemini API operations. This
// allows for easy mocking in tests.
type googleClient interface {
	generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a new Google ChatModel.
//
// Parameters:
//   - apiKey: Google API key
//   - modelName: model to use (e.g., "gemini-2.5-flash"). Empty string
//     uses the default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &ChatModel{
		apiKey:    apiKey,
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

// Chat implements the model.ChatModel interface.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}
	return m.client.generateContent(ctx, messages, tools)
}

// defaultClient wraps the official Google Gemini SDK client.
type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(c.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google API error: %w", err)
	}
	if err := checkSafetyBlock(resp); err != nil {
		return model.ChatOut{}, err
	}
	return convertResponse(resp), nil
}

// checkSafetyBlock returns a SafetyFilterError if the response was
// blocked by Gemini's safety filters.
func checkSafetyBlock(resp *genai.GenerateContentResponse) error {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return &SafetyFilterError{
			reason:   "prompt blocked",
			category: resp.PromptFeedback.BlockReason.String(),
		}
	}
	for _, candidate := range resp.Candidates {
		if candidate.FinishReason == genai.FinishReasonSafety {
			return &SafetyFilterError{
				reason:   "response blocked",
				category: candidate.FinishReason.String(),
			}
		}
	}
	return nil
}

// convertMessages flattens the conversation into Gemini parts. System
// and assistant turns are prefixed so the model sees the structure.
func convertMessages(messages []model.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case model.RoleSystem:
			parts = append(parts, genai.Text("System: "+msg.Content))
		case model.RoleAssistant:
			parts = append(parts, genai.Text("Assistant: "+msg.Content))
		default:
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

// convertTools converts ToolSpecs to Gemini function declarations.
func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchemaToGenai(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchemaToGenai converts a JSON-schema object map to genai.Schema.
func convertSchemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]any); ok {
		properties := make(map[string]*genai.Schema)
		for key, val := range props {
			propMap, ok := val.(map[string]any)
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertTypeString(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}

	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []any:
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}

	return result
}

// convertResponse converts a Gemini response to ChatOut.
func convertResponse(resp *genai.GenerateContentResponse) model.ChatOut {
	out := model.ChatOut{}

	if len(resp.Candidates) == 0 {
		return out
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out
}

// convertTypeString converts a JSON Schema type string to a genai.Type.
func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// SafetyFilterError represents a Google safety filter block.
//
// Use errors.As to check for this error type:
//
//	var safetyErr *google.SafetyFilterError
//	if errors.As(err, &safetyErr) {
//	    log.Printf("content blocked: %s", safetyErr.Category())
//	}
type SafetyFilterError struct {
	reason   string
	category string
}

// Error implements the error interface.
func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string {
	return e.category
}

// Reason returns why the content was blocked.
func (e *SafetyFilterError) Reason() string {
	return e.reason
}
