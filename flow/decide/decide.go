// Package decide provides Decider implementations: an adapter that puts
// a chat model behind the flow.Decider interface, and a scripted
// decider for deterministic tests.
package decide

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/agentflow-go/flow"
	"github.com/dshills/agentflow-go/flow/model"
)

// FromChatModel adapts a model.ChatModel into a flow.Decider.
//
// The adapter maps the model's output onto the Decision variant:
//   - a call to the synthetic handoff tool becomes the Handoff arm
//   - any other tool calls become the ToolCalls arm
//   - plain text with no tool calls becomes the Final arm
//
// Mixed output (text plus tool calls) follows the tool calls; models
// often narrate before acting and the narration is not a final answer.
//
// Malformed handoff arguments (missing or non-string "to_agent") yield
// an empty Handoff target, which the engine's validation turns into a
// correction rather than a crash.
func FromChatModel(m model.ChatModel) flow.Decider {
	return flow.DeciderFunc(func(ctx context.Context, history []model.Message, tools []model.ToolSpec) (flow.Decision, error) {
		out, err := m.Chat(ctx, history, tools)
		if err != nil {
			return flow.Decision{}, err
		}
		return mapOutput(out), nil
	})
}

// mapOutput converts a model response to a Decision.
func mapOutput(out model.ChatOut) flow.Decision {
	for _, call := range out.ToolCalls {
		if call.Name != flow.HandoffTool {
			continue
		}
		target, _ := call.Input["to_agent"].(string)
		reason, _ := call.Input["reason"].(string)
		return flow.HandoffTo(target, reason)
	}

	if len(out.ToolCalls) > 0 {
		calls := make([]flow.ToolCall, 0, len(out.ToolCalls))
		for _, call := range out.ToolCalls {
			calls = append(calls, flow.ToolCall{Name: call.Name, Args: call.Input})
		}
		return flow.CallTools(calls...)
	}

	return flow.FinalOutput(strings.TrimSpace(out.Text))
}

// Scripted is a Decider that replays a fixed sequence of decisions.
//
// Use it to test orchestration deterministically: the engine's turn
// taking, handoff validation, and budget enforcement can be exercised
// without a language model.
//
// Each Decide call consumes the next decision in order. Calls past the
// end of the script return an error, which fails the run; a correct
// test script always ends the run before running out.
//
// Example:
//
//	decider := decide.NewScripted(
//	    flow.CallTools(flow.ToolCall{Name: "get_pr_details"}),
//	    flow.HandoffTo("commentor", "context gathered"),
//	)
type Scripted struct {
	decisions []flow.Decision
	index     int
}

// NewScripted creates a Scripted decider that replays decisions in
// order.
func NewScripted(decisions ...flow.Decision) *Scripted {
	return &Scripted{decisions: decisions}
}

// Decide implements flow.Decider.
func (s *Scripted) Decide(ctx context.Context, _ []model.Message, _ []model.ToolSpec) (flow.Decision, error) {
	if err := ctx.Err(); err != nil {
		return flow.Decision{}, err
	}
	if s.index >= len(s.decisions) {
		return flow.Decision{}, fmt.Errorf("scripted decider exhausted after %d decisions", len(s.decisions))
	}
	d := s.decisions[s.index]
	s.index++
	return d, nil
}

// Took returns how many decisions have been consumed.
func (s *Scripted) Took() int {
	return s.index
}

// Loop is a Decider that cycles through a fixed sequence of decisions
// forever. Useful for exercising turn-budget exhaustion.
type Loop struct {
	decisions []flow.Decision
	index     int
}

// NewLoop creates a Loop decider cycling through decisions.
func NewLoop(decisions ...flow.Decision) *Loop {
	return &Loop{decisions: decisions}
}

// Decide implements flow.Decider.
func (l *Loop) Decide(ctx context.Context, _ []model.Message, _ []model.ToolSpec) (flow.Decision, error) {
	if err := ctx.Err(); err != nil {
		return flow.Decision{}, err
	}
	if len(l.decisions) == 0 {
		return flow.Decision{}, fmt.Errorf("loop decider has no decisions")
	}
	d := l.decisions[l.index%len(l.decisions)]
	l.index++
	return d, nil
}
