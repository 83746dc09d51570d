package google

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/agentflow-go/flow/model"
	"github.com/google/generative-ai-go/genai"
)

type mockClient struct {
	out   model.ChatOut
	err   error
	calls int
}

func (m *mockClient) generateContent(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	m.calls++
	return m.out, m.err
}

func TestChatModel(t *testing.T) {
	t.Run("delegates to client", func(t *testing.T) {
		mock := &mockClient{out: model.ChatOut{Text: "hello"}}
		m := NewChatModel("key", "gemini-2.5-flash")
		m.client = mock

		out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if out.Text != "hello" {
			t.Errorf("expected 'hello', got %q", out.Text)
		}
		if mock.calls != 1 {
			t.Errorf("expected 1 call, got %d", mock.calls)
		}
	})

	t.Run("propagates client errors", func(t *testing.T) {
		mock := &mockClient{err: errors.New("boom")}
		m := NewChatModel("key", "")
		m.client = mock

		if _, err := m.Chat(context.Background(), nil, nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		mock := &mockClient{out: model.ChatOut{Text: "hello"}}
		m := NewChatModel("key", "")
		m.client = mock

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if mock.calls != 0 {
			t.Error("client should not be called after cancellation")
		}
	})

	t.Run("defaults model name", func(t *testing.T) {
		m := NewChatModel("key", "")
		if m.modelName != "gemini-2.5-flash" {
			t.Errorf("unexpected default model %q", m.modelName)
		}
	})
}

func TestConvertMessages(t *testing.T) {
	parts := convertMessages([]model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: ""},
	})

	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if got := string(parts[0].(genai.Text)); got != "System: be helpful" {
		t.Errorf("unexpected system part %q", got)
	}
	if got := string(parts[1].(genai.Text)); got != "question" {
		t.Errorf("unexpected user part %q", got)
	}
	if got := string(parts[2].(genai.Text)); got != "Assistant: answer" {
		t.Errorf("unexpected assistant part %q", got)
	}
}

func TestConvertSchemaToGenai(t *testing.T) {
	t.Run("nil schema", func(t *testing.T) {
		if convertSchemaToGenai(nil) != nil {
			t.Error("expected nil for nil schema")
		}
	})

	t.Run("object with properties", func(t *testing.T) {
		schema := convertSchemaToGenai(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":  map[string]any{"type": "string", "description": "a name"},
				"count": map[string]any{"type": "integer"},
			},
			"required": []string{"name"},
		})

		if schema.Type != genai.TypeObject {
			t.Errorf("expected object type, got %v", schema.Type)
		}
		name, ok := schema.Properties["name"]
		if !ok {
			t.Fatal("missing 'name' property")
		}
		if name.Type != genai.TypeString || name.Description != "a name" {
			t.Errorf("unexpected name property: %+v", name)
		}
		if count := schema.Properties["count"]; count.Type != genai.TypeInteger {
			t.Errorf("unexpected count type %v", count.Type)
		}
		if len(schema.Required) != 1 || schema.Required[0] != "name" {
			t.Errorf("unexpected required list %v", schema.Required)
		}
	})

	t.Run("required as any slice", func(t *testing.T) {
		schema := convertSchemaToGenai(map[string]any{
			"required": []any{"a", "b"},
		})
		if len(schema.Required) != 2 {
			t.Errorf("unexpected required list %v", schema.Required)
		}
	})
}

func TestConvertTypeString(t *testing.T) {
	cases := map[string]genai.Type{
		"string":  genai.TypeString,
		"number":  genai.TypeNumber,
		"integer": genai.TypeInteger,
		"boolean": genai.TypeBoolean,
		"array":   genai.TypeArray,
		"object":  genai.TypeObject,
		"other":   genai.TypeUnspecified,
	}
	for in, want := range cases {
		if got := convertTypeString(in); got != want {
			t.Errorf("convertTypeString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]model.ToolSpec{
		{Name: "lookup", Description: "finds things", Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
		}},
	})

	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("unexpected tool shape: %+v", tools)
	}
	decl := tools[0].FunctionDeclarations[0]
	if decl.Name != "lookup" || decl.Description != "finds things" {
		t.Errorf("unexpected declaration: %+v", decl)
	}
	if decl.Parameters == nil || decl.Parameters.Type != genai.TypeObject {
		t.Error("expected object parameter schema")
	}
}

func TestConvertResponse(t *testing.T) {
	t.Run("text response", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("done")}},
			}},
		}
		out := convertResponse(resp)
		if out.Text != "done" || len(out.ToolCalls) != 0 {
			t.Errorf("unexpected output: %+v", out)
		}
	})

	t.Run("function call response", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.FunctionCall{Name: "lookup", Args: map[string]any{"id": "42"}},
				}},
			}},
		}
		out := convertResponse(resp)
		if len(out.ToolCalls) != 1 {
			t.Fatalf("expected 1 tool call, got %d", len(out.ToolCalls))
		}
		if out.ToolCalls[0].Name != "lookup" || out.ToolCalls[0].Input["id"] != "42" {
			t.Errorf("unexpected tool call: %+v", out.ToolCalls[0])
		}
	})

	t.Run("empty response", func(t *testing.T) {
		out := convertResponse(&genai.GenerateContentResponse{})
		if out.Text != "" || out.ToolCalls != nil {
			t.Errorf("expected empty output, got %+v", out)
		}
	})
}

func TestCheckSafetyBlock(t *testing.T) {
	t.Run("blocked candidate", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}
		err := checkSafetyBlock(resp)
		var safetyErr *SafetyFilterError
		if !errors.As(err, &safetyErr) {
			t.Fatalf("expected SafetyFilterError, got %v", err)
		}
		if safetyErr.Reason() != "response blocked" {
			t.Errorf("unexpected reason %q", safetyErr.Reason())
		}
	})

	t.Run("clean response", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}},
		}
		if err := checkSafetyBlock(resp); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
