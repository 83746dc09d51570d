package flow

import "errors"

// HandoffTool is the synthetic tool name through which language models
// request a control transfer. The engine advertises it to agents with a
// nonempty allowed-target set; decoders map calls to it into the Handoff
// arm of a Decision.
const HandoffTool = "handoff"

// ToolCall is a single tool invocation requested by an agent.
type ToolCall struct {
	// Name identifies the tool in the engine's registry.
	Name string

	// Args contains the call parameters, matching the tool's declared
	// parameter spec. May be nil for parameterless tools.
	Args map[string]any
}

// Handoff is a control-transfer request from the active agent to another
// named agent.
type Handoff struct {
	// Target is the name of the agent to activate. It must be in the
	// requesting agent's declared allowed-target set.
	Target string

	// Reason is a short free-form explanation, carried into the run's
	// event stream for auditing.
	Reason string
}

// Validate checks that the handoff names a target.
func (h *Handoff) Validate() error {
	if h.Target == "" {
		return errors.New("handoff target is required")
	}
	return nil
}

// Decision is the tagged variant produced by one agent turn. Exactly one
// arm must be populated:
//
//   - ToolCalls: invoke one or more tools and keep the same agent active
//   - Handoff: transfer control to another agent
//   - Final: terminate the run successfully with the given output
//
// Decisions arrive from a non-deterministic decision function, so they are
// decoded and validated at the boundary; anything that does not match a
// known shape is rejected rather than trusted.
type Decision struct {
	ToolCalls []ToolCall
	Handoff   *Handoff
	Final     *string
}

// CallTools returns a Decision requesting the given tool calls.
func CallTools(calls ...ToolCall) Decision {
	return Decision{ToolCalls: calls}
}

// HandoffTo returns a Decision requesting a handoff to target.
func HandoffTo(target, reason string) Decision {
	return Decision{Handoff: &Handoff{Target: target, Reason: reason}}
}

// FinalOutput returns a Decision that terminates the run with text.
func FinalOutput(text string) Decision {
	return Decision{Final: &text}
}

// Validate checks that exactly one arm of the variant is populated and
// that the populated arm is well formed.
func (d Decision) Validate() error {
	arms := 0
	if len(d.ToolCalls) > 0 {
		arms++
	}
	if d.Handoff != nil {
		arms++
	}
	if d.Final != nil {
		arms++
	}

	switch arms {
	case 0:
		return errors.New("decision is empty: expected tool calls, a handoff, or a final output")
	case 1:
		// Fall through to arm checks.
	default:
		return errors.New("decision is ambiguous: more than one arm populated")
	}

	for _, call := range d.ToolCalls {
		if call.Name == "" {
			return errors.New("tool call name is required")
		}
	}
	if d.Handoff != nil {
		return d.Handoff.Validate()
	}
	return nil
}
