package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Registry holds the tools available to an engine. It is built once at
// startup and read-only afterwards; Invoke is safe for concurrent use
// across runs.
//
// Example usage:
//
//	registry := tool.NewRegistry()
//	if err := registry.Register(&EchoTool{}); err != nil {
//	    log.Fatal(err)
//	}
//	out, err := registry.Invoke(ctx, "echo", map[string]any{"text": "hi"})
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
//
// Returns an error if the tool is nil, its name is empty, or a tool
// with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("register: tool is nil")
	}
	name := t.Spec().Name
	if name == "" {
		return errors.New("register: tool name is empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("register: tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Spec returns the declared interface of a registered tool.
//
// Returns an *Error with Kind KindNotFound for unknown names.
func (r *Registry) Spec(name string) (Spec, error) {
	t, ok := r.tools[name]
	if !ok {
		return Spec{}, &Error{Kind: KindNotFound, Tool: name, Message: "not registered"}
	}
	return t.Spec(), nil
}

// Class returns the side-effect class of a registered tool.
//
// Returns an *Error with Kind KindNotFound for unknown names.
func (r *Registry) Class(name string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", &Error{Kind: KindNotFound, Tool: name, Message: "not registered"}
	}
	return t.Class(), nil
}

// Invoke validates args against the tool's declared parameters and
// executes the tool.
//
// Failure modes, all returned as *Error:
//   - KindNotFound: name is not registered
//   - KindInvalidArgs: a required parameter is missing
//   - KindExternalFailure: the tool ran and returned an error
//
// Tools that return a *Error themselves keep their own kind. Context
// cancellation is returned as-is so callers can distinguish it from
// tool failure.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Tool: name, Message: "not registered"}
	}

	if err := validateArgs(t.Spec(), args); err != nil {
		return nil, err
	}

	out, err := t.Call(ctx, args)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		var toolErr *Error
		if errors.As(err, &toolErr) {
			return nil, err
		}
		return nil, &Error{
			Kind:    KindExternalFailure,
			Tool:    name,
			Message: err.Error(),
			Cause:   err,
		}
	}
	return out, nil
}

// validateArgs checks that every required parameter is present.
func validateArgs(spec Spec, args map[string]any) error {
	for _, p := range spec.Params {
		if !p.Required {
			continue
		}
		if _, present := args[p.Name]; !present {
			return &Error{
				Kind:    KindInvalidArgs,
				Tool:    spec.Name,
				Message: fmt.Sprintf("missing required parameter %q", p.Name),
			}
		}
	}
	return nil
}
