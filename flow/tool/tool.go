// Package tool provides the tool registry for agentflow-go.
//
// A tool is a named operation an agent may request during a run. Every
// tool declares a side-effect class so the engine can treat read
// failures, state mutations, and terminal external writes differently.
package tool

import "context"

// Side-effect classes. Every tool declares exactly one.
const (
	// ClassReadExternal reads from an external system and never mutates
	// anything. Failures are reported to the requesting agent and the
	// run continues.
	ClassReadExternal = "read_external"

	// ClassStateMutation writes only to the run's shared state. No
	// external side effects.
	ClassStateMutation = "state_mutation"

	// ClassTerminalWrite performs an externally visible write that must
	// happen at most once per run. The engine retries transient
	// failures; exhaustion fails the run.
	ClassTerminalWrite = "terminal_write"
)

// Param describes one parameter of a tool.
type Param struct {
	// Name is the parameter key in the call arguments.
	Name string

	// Type is a JSON-schema type name: "string", "integer", "number",
	// "boolean", "object", or "array".
	Type string

	// Description explains the parameter to the deciding model.
	Description string

	// Required marks parameters that must be present in every call.
	Required bool
}

// Spec is the declared interface of a tool: its name, purpose, and
// parameters. Specs are converted to provider schemas when a decider
// presents tools to a language model.
type Spec struct {
	// Name is the unique identifier for the tool. Names should be
	// lowercase with underscores, e.g. "get_pr_details".
	Name string

	// Description explains what the tool does, for the deciding model.
	Description string

	// Params lists the tool's parameters in declaration order.
	Params []Param
}

// Schema returns the spec's parameters as a JSON-schema object of the
// form {"type": "object", "properties": {...}, "required": [...]}.
//
// Provider adapters consume this shape directly.
func (s Spec) Schema() map[string]any {
	properties := make(map[string]any, len(s.Params))
	required := []string{}
	for _, p := range s.Params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Tool defines the interface for operations agents can invoke.
//
// Implementations should:
//   - Validate input beyond what the registry checks
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]any
//   - Be idempotent when possible
//
// Example implementation:
//
//	type EchoTool struct{}
//
//	func (EchoTool) Spec() tool.Spec {
//	    return tool.Spec{
//	        Name:        "echo",
//	        Description: "Echo the input text back.",
//	        Params: []tool.Param{
//	            {Name: "text", Type: "string", Description: "Text to echo.", Required: true},
//	        },
//	    }
//	}
//
//	func (EchoTool) Class() string { return tool.ClassReadExternal }
//
//	func (EchoTool) Call(ctx context.Context, args map[string]any) (map[string]any, error) {
//	    return map[string]any{"text": args["text"]}, nil
//	}
type Tool interface {
	// Spec returns the tool's declared interface.
	Spec() Spec

	// Class returns the tool's side-effect class, one of the Class*
	// constants.
	Class() string

	// Call executes the tool with the provided arguments.
	//
	// Parameters:
	//   - ctx: context for cancellation and per-run state access
	//   - args: call arguments matching Spec().Params (may be nil for
	//     parameterless tools)
	//
	// Returns the structured result or an error. Tools that read or
	// write shared state obtain it via StateFor(ctx).
	Call(ctx context.Context, args map[string]any) (map[string]any, error)
}

// StateStore is the view of shared state a tool sees. The engine binds
// the active run's state into the call context; tools retrieve it with
// StateFor.
type StateStore interface {
	// Get returns the value stored under key and whether it is present.
	Get(key string) (any, bool)

	// Set stores value under key, replacing any previous value.
	Set(key string, value any)
}

type stateCtxKey struct{}

// WithState binds a run's shared state into ctx for the duration of a
// tool call. Called by the engine before each invocation.
func WithState(ctx context.Context, s StateStore) context.Context {
	return context.WithValue(ctx, stateCtxKey{}, s)
}

// StateFor returns the shared state bound into ctx, or nil when no run
// state is bound. Tools that require state should treat nil as a
// programming error.
func StateFor(ctx context.Context) StateStore {
	s, _ := ctx.Value(stateCtxKey{}).(StateStore)
	return s
}
