package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/agentflow-go/flow/model"
)

type mockClient struct {
	outs  []model.ChatOut
	errs  []error
	calls int
}

func (m *mockClient) createResponse(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	idx := m.calls
	m.calls++
	var out model.ChatOut
	var err error
	if idx < len(m.outs) {
		out = m.outs[idx]
	}
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	return out, err
}

func newTestModel(client openaiClient) *ChatModel {
	m := NewChatModel("key", "gpt-4o")
	m.client = client
	m.retryDelay = time.Millisecond
	return m
}

func TestChat(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		mock := &mockClient{outs: []model.ChatOut{{Text: "hello"}}}
		m := newTestModel(mock)

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

	t.Run("retries transient errors", func(t *testing.T) {
		mock := &mockClient{
			outs: []model.ChatOut{{}, {Text: "recovered"}},
			errs: []error{errors.New("connection reset"), nil},
		}
		m := newTestModel(mock)

		out, err := m.Chat(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if out.Text != "recovered" {
			t.Errorf("expected 'recovered', got %q", out.Text)
		}
		if mock.calls != 2 {
			t.Errorf("expected 2 calls, got %d", mock.calls)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		mock := &mockClient{errs: []error{errors.New("invalid api key")}}
		m := newTestModel(mock)

		if _, err := m.Chat(context.Background(), nil, nil); err == nil {
			t.Error("expected error")
		}
		if mock.calls != 1 {
			t.Errorf("expected 1 call, got %d", mock.calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		transient := errors.New("gateway timeout")
		mock := &mockClient{errs: []error{transient, transient, transient, transient, transient}}
		m := newTestModel(mock)

		_, err := m.Chat(context.Background(), nil, nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, transient) {
			t.Errorf("expected wrapped last error, got %v", err)
		}
		if mock.calls != m.maxRetries+1 {
			t.Errorf("expected %d calls, got %d", m.maxRetries+1, mock.calls)
		}
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		mock := &mockClient{outs: []model.ChatOut{{Text: "hello"}}}
		m := newTestModel(mock)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if mock.calls != 0 {
			t.Error("client should not be called after cancellation")
		}
	})
}

func TestIsTransientError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("request timeout"), true},
		{errors.New("network unreachable"), true},
		{errors.New("connection refused"), true},
		{errors.New("temporary failure"), true},
		{errors.New("HTTP 503 service unavailable"), true},
		{errors.New("HTTP 502 bad gateway"), true},
		{errors.New("HTTP 500 internal error"), true},
		{errors.New("invalid api key"), false},
		{errors.New("bad request"), false},
	}
	for _, tc := range cases {
		if got := isTransientError(tc.err); got != tc.want {
			t.Errorf("isTransientError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestIsRateLimitError(t *testing.T) {
	if !isRateLimitError(errors.New("rate limit exceeded")) {
		t.Error("expected rate limit detection")
	}
	if !isRateLimitError(errors.New("HTTP 429 too many requests")) {
		t.Error("expected 429 detection")
	}
	if isRateLimitError(errors.New("bad request")) {
		t.Error("unexpected rate limit detection")
	}
	if isRateLimitError(nil) {
		t.Error("nil is not a rate limit error")
	}
}

func TestFlattenMessages(t *testing.T) {
	got := flattenMessages([]model.Message{
		{Role: model.RoleSystem, Content: "be helpful"},
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: ""},
	})
	want := "System: be helpful\n\nquestion\n\nAssistant: answer"
	if got != want {
		t.Errorf("unexpected transcript:\n%q\nwant:\n%q", got, want)
	}
}

func TestDecodeArguments(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		args, err := decodeArguments(`{"id":"42","count":3}`)
		if err != nil {
			t.Fatalf("decodeArguments failed: %v", err)
		}
		if args["id"] != "42" {
			t.Errorf("unexpected args: %+v", args)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		args, err := decodeArguments("  ")
		if err != nil {
			t.Fatalf("decodeArguments failed: %v", err)
		}
		if len(args) != 0 {
			t.Errorf("expected empty map, got %+v", args)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := decodeArguments("{not json"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestConvertTools(t *testing.T) {
	tools := convertTools([]model.ToolSpec{
		{Name: "lookup", Description: "finds things", Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []string{"id"},
		}},
	})

	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	fn := tools[0].OfFunction
	if fn == nil {
		t.Fatal("expected function tool")
	}
	if fn.Name != "lookup" {
		t.Errorf("unexpected name %q", fn.Name)
	}
	if fn.Parameters["type"] != "object" {
		t.Errorf("unexpected parameters %+v", fn.Parameters)
	}
}
