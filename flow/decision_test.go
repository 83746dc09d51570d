package flow

import "testing"

// TestDecision_Validate verifies the exactly-one-arm rule.
func TestDecision_Validate(t *testing.T) {
	t.Run("tool calls arm is valid", func(t *testing.T) {
		d := CallTools(ToolCall{Name: "get_pr_details"})
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("handoff arm is valid", func(t *testing.T) {
		d := HandoffTo("commentor", "draft needed")
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("final arm is valid", func(t *testing.T) {
		d := FinalOutput("review posted")
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty final output is still a decision", func(t *testing.T) {
		d := FinalOutput("")
		if err := d.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("empty decision is rejected", func(t *testing.T) {
		if err := (Decision{}).Validate(); err == nil {
			t.Error("expected error for empty decision")
		}
	})

	t.Run("two arms are rejected", func(t *testing.T) {
		final := "done"
		d := Decision{
			ToolCalls: []ToolCall{{Name: "get_pr_details"}},
			Final:     &final,
		}
		if err := d.Validate(); err == nil {
			t.Error("expected error for ambiguous decision")
		}
	})

	t.Run("unnamed tool call is rejected", func(t *testing.T) {
		d := CallTools(ToolCall{Name: ""})
		if err := d.Validate(); err == nil {
			t.Error("expected error for empty tool name")
		}
	})

	t.Run("handoff without target is rejected", func(t *testing.T) {
		d := HandoffTo("", "reason only")
		if err := d.Validate(); err == nil {
			t.Error("expected error for empty handoff target")
		}
	})
}
