package tool

import (
	"context"
	"errors"
	"testing"
)

// TestRegistry_Register verifies registration rules.
func TestRegistry_Register(t *testing.T) {
	t.Run("registers and lists tools", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "beta"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "alpha"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		names := r.Names()
		if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
			t.Errorf("expected sorted names [alpha beta], got %v", names)
		}
	})

	t.Run("rejects nil tool", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(nil); err == nil {
			t.Error("expected error for nil tool")
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(&MockTool{}); err == nil {
			t.Error("expected error for empty tool name")
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "dup"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "dup"}}); err == nil {
			t.Error("expected error for duplicate registration")
		}
	})
}

// TestRegistry_Invoke verifies invocation, validation, and error wrapping.
func TestRegistry_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("invokes registered tool", func(t *testing.T) {
		r := NewRegistry()
		mock := &MockTool{
			ToolSpec:  Spec{Name: "echo"},
			Responses: []map[string]any{{"ok": true}},
		}
		if err := r.Register(mock); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out, err := r.Invoke(ctx, "echo", map[string]any{"text": "hi"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out["ok"] != true {
			t.Errorf("expected response {ok: true}, got %v", out)
		}
		if mock.CallCount() != 1 {
			t.Errorf("expected 1 call, got %d", mock.CallCount())
		}
	})

	t.Run("unknown tool returns not_found", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Invoke(ctx, "missing", nil)

		var toolErr *Error
		if !errors.As(err, &toolErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if toolErr.Kind != KindNotFound {
			t.Errorf("expected kind %q, got %q", KindNotFound, toolErr.Kind)
		}
		if toolErr.Tool != "missing" {
			t.Errorf("expected tool 'missing', got %q", toolErr.Tool)
		}
	})

	t.Run("missing required parameter returns invalid_args", func(t *testing.T) {
		r := NewRegistry()
		mock := &MockTool{
			ToolSpec: Spec{
				Name: "get_file_content",
				Params: []Param{
					{Name: "path", Type: "string", Required: true},
				},
			},
		}
		if err := r.Register(mock); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := r.Invoke(ctx, "get_file_content", map[string]any{})

		var toolErr *Error
		if !errors.As(err, &toolErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if toolErr.Kind != KindInvalidArgs {
			t.Errorf("expected kind %q, got %q", KindInvalidArgs, toolErr.Kind)
		}
		if mock.CallCount() != 0 {
			t.Error("expected tool not to be called on validation failure")
		}
	})

	t.Run("plain tool error wraps as external_failure", func(t *testing.T) {
		r := NewRegistry()
		cause := errors.New("503 service unavailable")
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "flaky"}, Err: cause}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := r.Invoke(ctx, "flaky", nil)

		var toolErr *Error
		if !errors.As(err, &toolErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if toolErr.Kind != KindExternalFailure {
			t.Errorf("expected kind %q, got %q", KindExternalFailure, toolErr.Kind)
		}
		if !errors.Is(err, cause) {
			t.Error("expected wrapped error to unwrap to the original cause")
		}
	})

	t.Run("structured tool error keeps its kind", func(t *testing.T) {
		r := NewRegistry()
		structured := &Error{Kind: KindInvalidArgs, Tool: "picky", Message: "bad ref"}
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "picky"}, Err: structured}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := r.Invoke(ctx, "picky", nil)

		var toolErr *Error
		if !errors.As(err, &toolErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if toolErr.Kind != KindInvalidArgs {
			t.Errorf("expected preserved kind %q, got %q", KindInvalidArgs, toolErr.Kind)
		}
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(&MockTool{ToolSpec: Spec{Name: "slow"}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := r.Invoke(cancelled, "slow", nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestRegistry_Accessors verifies Spec and Class lookups.
func TestRegistry_Accessors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&MockTool{
		ToolSpec:  Spec{Name: "post_review", Description: "Publish the review."},
		ToolClass: ClassTerminalWrite,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spec, err := r.Spec("post_review")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Description != "Publish the review." {
		t.Errorf("unexpected description: %q", spec.Description)
	}

	class, err := r.Class("post_review")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if class != ClassTerminalWrite {
		t.Errorf("expected class %q, got %q", ClassTerminalWrite, class)
	}

	if _, err := r.Spec("absent"); err == nil {
		t.Error("expected error for unknown spec lookup")
	}
	if _, err := r.Class("absent"); err == nil {
		t.Error("expected error for unknown class lookup")
	}
}
