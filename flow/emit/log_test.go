package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogEmitter_TextOutput verifies LogEmitter writes human-readable lines.
func TestLogEmitter_TextOutput(t *testing.T) {
	t.Run("emits event with all fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{
			RunID: "run-001",
			Turn:  1,
			Agent: "context",
			Kind:  KindToolCalled,
			Meta: map[string]any{
				"tool": "get_pr_details",
			},
		})

		output := buf.String()
		if output == "" {
			t.Fatal("expected output, got empty string")
		}

		if !strings.Contains(output, "run-001") {
			t.Errorf("expected output to contain RunID 'run-001', got: %s", output)
		}
		if !strings.Contains(output, "context") {
			t.Errorf("expected output to contain agent 'context', got: %s", output)
		}
		if !strings.Contains(output, KindToolCalled) {
			t.Errorf("expected output to contain kind %q, got: %s", KindToolCalled, output)
		}
		if !strings.Contains(output, "get_pr_details") {
			t.Errorf("expected output to contain meta tool name, got: %s", output)
		}
	})

	t.Run("emits one line per event", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{RunID: "run-001", Turn: 1, Agent: "context", Kind: KindAgentActivated})
		emitter.Emit(Event{RunID: "run-001", Turn: 2, Agent: "commentor", Kind: KindAgentActivated})

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 2 {
			t.Errorf("expected 2 lines of output, got %d", len(lines))
		}
	})
}

// TestLogEmitter_JSONFormatting verifies JSONL output parses back cleanly.
func TestLogEmitter_JSONFormatting(t *testing.T) {
	t.Run("emits valid JSON", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		emitter.Emit(Event{
			RunID: "run-002",
			Turn:  3,
			Agent: "posting",
			Kind:  KindFinalOutput,
			Msg:   "review posted",
			Meta: map[string]any{
				"status": "success",
			},
		})

		var decoded struct {
			RunID string         `json:"runID"`
			Turn  int            `json:"turn"`
			Agent string         `json:"agent"`
			Kind  string         `json:"kind"`
			Msg   string         `json:"msg"`
			Meta  map[string]any `json:"meta"`
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v\noutput: %s", err, buf.String())
		}

		if decoded.RunID != "run-002" {
			t.Errorf("expected runID 'run-002', got %q", decoded.RunID)
		}
		if decoded.Turn != 3 {
			t.Errorf("expected turn 3, got %d", decoded.Turn)
		}
		if decoded.Kind != KindFinalOutput {
			t.Errorf("expected kind %q, got %q", KindFinalOutput, decoded.Kind)
		}
		if decoded.Meta["status"] != "success" {
			t.Errorf("expected meta status 'success', got %v", decoded.Meta["status"])
		}
	})

	t.Run("emits one JSON object per line", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, true)

		for i := 1; i <= 3; i++ {
			emitter.Emit(Event{RunID: "run-003", Turn: i, Kind: KindToolResult})
		}

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 JSONL lines, got %d", len(lines))
		}
		for _, line := range lines {
			if !json.Valid([]byte(line)) {
				t.Errorf("line is not valid JSON: %s", line)
			}
		}
	})
}

// TestLogEmitter_NilWriter verifies nil writer defaults to stdout without panic.
func TestLogEmitter_NilWriter(t *testing.T) {
	emitter := NewLogEmitter(nil, false)
	if emitter == nil {
		t.Fatal("expected emitter, got nil")
	}
}
