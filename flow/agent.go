package flow

import (
	"context"

	"github.com/dshills/agentflow-go/flow/model"
)

// Decider is the single narrow interface behind which the non-deterministic
// decision function (typically a language model) hides. The deterministic
// orchestration core (state machine, handoff validation, termination) is
// independent of it and can be tested with a scripted stand-in.
//
// Decide receives the accumulated conversation history and the tool
// specifications available to the current agent (including the synthetic
// handoff tool when the agent may hand off), and returns one Decision.
type Decider interface {
	Decide(ctx context.Context, history []model.Message, tools []model.ToolSpec) (Decision, error)
}

// DeciderFunc adapts a plain function to the Decider interface.
type DeciderFunc func(ctx context.Context, history []model.Message, tools []model.ToolSpec) (Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, history []model.Message, tools []model.ToolSpec) (Decision, error) {
	return f(ctx, history, tools)
}

// Agent is a named policy unit bound to a subset of registry tools and a
// fixed set of legal handoff targets. Agents are created at workflow
// construction and are immutable for the duration of a run.
type Agent struct {
	// Name uniquely identifies the agent within the engine.
	Name string

	// Description is a short statement of the agent's role, surfaced to
	// other agents through the handoff tool description.
	Description string

	// Prompt is the agent's instruction policy. When nonempty the engine
	// prepends it as a system message before each decision.
	Prompt string

	// Tools lists the registry tool names this agent may invoke. Calls to
	// tools outside this set are rejected as unknown.
	Tools []string

	// Handoffs lists the agent names this agent may hand control to. An
	// empty set means the agent can only call tools or finish the run.
	Handoffs []string

	// Decider produces the agent's decision each turn.
	Decider Decider
}

// boundTo reports whether the agent may invoke the named tool.
func (a *Agent) boundTo(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// allows reports whether target is in the agent's declared handoff set.
func (a *Agent) allows(target string) bool {
	for _, h := range a.Handoffs {
		if h == target {
			return true
		}
	}
	return false
}
