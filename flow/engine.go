package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/agentflow-go/flow/emit"
	"github.com/dshills/agentflow-go/flow/model"
	"github.com/dshills/agentflow-go/flow/tool"
)

// Run terminal statuses.
const (
	// StatusSuccess means an agent produced a final output.
	StatusSuccess = "success"

	// StatusExhausted means the run consumed its turn budget without a
	// final output.
	StatusExhausted = "exhausted"

	// StatusFailed means the run terminated on an unrecoverable error:
	// an illegal handoff, a failed terminal write, a decider fault, or
	// a persistence fault.
	StatusFailed = "failed"
)

// RunResult is the terminal outcome of a run. Run always returns one,
// never a raw fault: failures are carried in Status and Err so callers
// can distinguish "the workflow decided to stop" from "the machinery
// broke" without catching panics.
type RunResult struct {
	// Status is one of StatusSuccess, StatusExhausted, StatusFailed.
	Status string

	// Output is the final output text. Set only on StatusSuccess.
	Output string

	// Err carries the terminating error for StatusExhausted and
	// StatusFailed. Sentinel errors (ErrRunExhausted,
	// ErrHandoffRejected, ErrTerminalWriteFailed) are wrapped so
	// errors.Is works.
	Err error

	// Turns is the number of decision turns the run actually took.
	Turns int

	// State is the shared state at termination, whatever the status.
	// Partial progress survives for inspection.
	State *State
}

// Engine coordinates a set of agents over one shared state per run.
//
// The engine owns the deterministic parts of orchestration: turn
// taking, tool dispatch, handoff legality, the turn budget, and event
// emission. All non-determinism lives behind each agent's Decider.
//
// An Engine is immutable after New and safe for concurrent Run calls;
// each run gets its own State and history.
//
// Example:
//
//	eng, err := flow.New(registry, []*flow.Agent{posting, commentor, ctxAgent},
//	    flow.WithRoot("posting"),
//	    flow.WithMaxTurns(30),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result := eng.Run(ctx, runID, "Review PR #42", initialState)
type Engine struct {
	registry *tool.Registry
	agents   map[string]*Agent
	cfg      engineConfig
}

// New creates an Engine from a tool registry and a set of agents.
//
// Validation performed here, so runs never trip on static mistakes:
//   - registry is non-nil and at least one agent is given
//   - agent names are unique and nonempty, deciders are non-nil
//   - every tool an agent binds is registered
//   - the root agent (WithRoot or the first agent) exists
//
// Handoff targets are deliberately NOT required to be registered here:
// a handoff to an unknown target is a runtime rejection, mirroring how
// a handoff outside the declared set is handled.
func New(registry *tool.Registry, agents []*Agent, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("flow: registry is nil")
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("flow: at least one agent is required")
	}

	byName := make(map[string]*Agent, len(agents))
	for _, a := range agents {
		if a == nil {
			return nil, fmt.Errorf("flow: agent is nil")
		}
		if a.Name == "" {
			return nil, fmt.Errorf("flow: agent name is empty")
		}
		if _, dup := byName[a.Name]; dup {
			return nil, fmt.Errorf("flow: duplicate agent name %q", a.Name)
		}
		if a.Decider == nil {
			return nil, fmt.Errorf("flow: agent %q has no decider", a.Name)
		}
		for _, tname := range a.Tools {
			if _, err := registry.Spec(tname); err != nil {
				return nil, fmt.Errorf("flow: agent %q binds unregistered tool %q", a.Name, tname)
			}
		}
		byName[a.Name] = a
	}

	cfg := engineConfig{
		root:     agents[0].Name,
		maxTurns: DefaultMaxTurns,
		emitter:  emit.NewNullEmitter(),
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if _, ok := byName[cfg.root]; !ok {
		return nil, fmt.Errorf("flow: root agent %q is not registered", cfg.root)
	}

	return &Engine{registry: registry, agents: byName, cfg: cfg}, nil
}

// Run executes one task to a terminal RunResult.
//
// Parameters:
//   - runID: unique identifier for this run, used in events and
//     persistence
//   - task: the user task, seeded as the first history message
//   - initial: initial shared state key/value pairs (may be nil)
//
// The loop activates the root agent and repeats: ask the active
// agent's decider for a Decision, then apply it. Tool calls keep the
// agent active; a validated handoff activates the target; a final
// output ends the run. Every turn consumes budget; exceeding it ends
// the run with StatusExhausted.
//
// Failure handling per side-effect class:
//   - read and state-mutation tool failures are absorbed: the error is
//     fed back into the history and the run continues
//   - terminal-write tool failures end the run with StatusFailed
//     wrapping ErrTerminalWriteFailed (retries happen inside the tool)
func (e *Engine) Run(ctx context.Context, runID, task string, initial map[string]any) RunResult {
	r := &run{
		engine: e,
		id:     runID,
		state:  NewState(initial),
		active: e.agents[e.cfg.root],
	}
	r.history = append(r.history, model.Message{Role: model.RoleUser, Content: task})

	r.emit(emit.Event{RunID: runID, Turn: 0, Kind: emit.KindRunStarted, Msg: task})
	r.emit(emit.Event{RunID: runID, Turn: 0, Agent: r.active.Name, Kind: emit.KindAgentActivated})

	result := r.loop(ctx)

	r.emit(emit.Event{
		RunID: runID,
		Turn:  result.Turns,
		Agent: r.active.Name,
		Kind:  emit.KindRunFinished,
		Meta:  map[string]any{"status": result.Status},
	})
	e.cfg.metrics.RunCompleted(result.Status)
	return result
}

// run holds the per-run mutable machinery.
type run struct {
	engine  *Engine
	id      string
	state   *State
	active  *Agent
	history []model.Message
	turn    int

	// persistErr records a store failure noticed inside emit; the loop
	// converts it into a failed run at the next checkpoint.
	persistErr error
}

func (r *run) loop(ctx context.Context) RunResult {
	e := r.engine

	for {
		r.turn++
		if r.turn > e.cfg.maxTurns {
			r.turn--
			return r.finish(StatusExhausted, "",
				fmt.Errorf("%w (budget %d)", ErrRunExhausted, e.cfg.maxTurns))
		}
		e.cfg.metrics.TurnTaken()

		decision, err := r.decide(ctx)
		if err != nil {
			return r.finish(StatusFailed, "", fmt.Errorf("agent %q decider: %w", r.active.Name, err))
		}

		if err := decision.Validate(); err != nil {
			// Malformed decisions are corrected, not fatal: the decider
			// sees its mistake in the history and gets another turn.
			r.history = append(r.history, model.Message{
				Role:    model.RoleUser,
				Content: "Your last response was not a valid decision (" + err.Error() + "). Respond with tool calls, a handoff, or a final answer.",
			})
			continue
		}

		switch {
		case decision.Final != nil:
			output := *decision.Final
			r.emit(emit.Event{
				RunID: r.id, Turn: r.turn, Agent: r.active.Name,
				Kind: emit.KindFinalOutput, Msg: output,
			})
			return r.finish(StatusSuccess, output, nil)

		case decision.Handoff != nil:
			if result, terminal := r.applyHandoff(decision.Handoff); terminal {
				return result
			}

		default:
			if result, terminal := r.applyToolCalls(ctx, decision.ToolCalls); terminal {
				return result
			}
		}

		if err := r.persistTurn(ctx); err != nil {
			return r.finish(StatusFailed, "", fmt.Errorf("persist turn %d: %w", r.turn, err))
		}
	}
}

// decide asks the active agent's decider for one Decision, timing it
// and prepending the agent's prompt as a system message.
func (r *run) decide(ctx context.Context) (Decision, error) {
	agent := r.active

	msgs := make([]model.Message, 0, len(r.history)+1)
	if agent.Prompt != "" {
		msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: agent.Prompt})
	}
	msgs = append(msgs, r.history...)

	start := time.Now()
	decision, err := agent.Decider.Decide(ctx, msgs, r.specsFor(agent))
	r.engine.cfg.metrics.ObserveDecision(agent.Name, time.Since(start))
	return decision, err
}

// applyHandoff validates and applies a control transfer. The second
// return is true when the run must terminate.
func (r *run) applyHandoff(h *Handoff) (RunResult, bool) {
	e := r.engine
	target, registered := e.agents[h.Target]

	if !r.active.allows(h.Target) || !registered {
		r.emit(emit.Event{
			RunID: r.id, Turn: r.turn, Agent: r.active.Name,
			Kind: emit.KindHandoffRejected,
			Meta: map[string]any{"target": h.Target, "reason": h.Reason},
		})
		e.cfg.metrics.HandoffRejected(r.active.Name)
		return r.finish(StatusFailed, "",
			fmt.Errorf("agent %q requested handoff to %q: %w", r.active.Name, h.Target, ErrHandoffRejected)), true
	}

	r.emit(emit.Event{
		RunID: r.id, Turn: r.turn, Agent: r.active.Name,
		Kind: emit.KindHandoff,
		Meta: map[string]any{"target": h.Target, "reason": h.Reason},
	})
	e.cfg.metrics.HandoffMade(r.active.Name, h.Target)

	note := "Handing off to " + h.Target
	if h.Reason != "" {
		note += ": " + h.Reason
	}
	r.history = append(r.history, model.Message{Role: model.RoleAssistant, Content: note})

	r.active = target
	r.emit(emit.Event{RunID: r.id, Turn: r.turn, Agent: target.Name, Kind: emit.KindAgentActivated})
	return RunResult{}, false
}

// applyToolCalls executes the requested calls in order. The second
// return is true when the run must terminate.
func (r *run) applyToolCalls(ctx context.Context, calls []ToolCall) (RunResult, bool) {
	e := r.engine

	var summary []string
	for _, call := range calls {
		summary = append(summary, call.Name)
	}
	r.history = append(r.history, model.Message{
		Role:    model.RoleAssistant,
		Content: "Calling tools: " + strings.Join(summary, ", "),
	})

	for _, call := range calls {
		r.emit(emit.Event{
			RunID: r.id, Turn: r.turn, Agent: r.active.Name,
			Kind: emit.KindToolCalled, Msg: call.Name,
			Meta: map[string]any{"tool": call.Name, "args": call.Args},
		})

		out, dur, err := r.invoke(ctx, call)
		if err != nil {
			r.emit(emit.Event{
				RunID: r.id, Turn: r.turn, Agent: r.active.Name,
				Kind: emit.KindToolResult, Msg: call.Name,
				Meta: map[string]any{"tool": call.Name, "error": err.Error(), "duration_ms": dur.Milliseconds()},
			})
			e.cfg.metrics.ToolCalled(call.Name, "error", dur)

			if class, cerr := e.registry.Class(call.Name); cerr == nil && class == tool.ClassTerminalWrite {
				// The tool has already spent its retry budget; the
				// at-most-once external write cannot be confirmed.
				return r.finish(StatusFailed, "",
					fmt.Errorf("tool %q: %v: %w", call.Name, err, ErrTerminalWriteFailed)), true
			}

			// Reads and validation failures are absorbed: the agent is
			// told and decides what to do next.
			r.history = append(r.history, model.Message{
				Role:    model.RoleUser,
				Content: "Tool " + call.Name + " failed: " + err.Error(),
			})
			continue
		}

		r.emit(emit.Event{
			RunID: r.id, Turn: r.turn, Agent: r.active.Name,
			Kind: emit.KindToolResult, Msg: call.Name,
			Meta: map[string]any{"tool": call.Name, "result": out, "duration_ms": dur.Milliseconds()},
		})
		e.cfg.metrics.ToolCalled(call.Name, "success", dur)

		r.history = append(r.history, model.Message{
			Role:    model.RoleUser,
			Content: "Tool " + call.Name + " returned: " + compactJSON(out),
		})
	}
	return RunResult{}, false
}

// invoke runs one tool call with state bound into the context.
//
// An agent calling outside its bound tool set is reported the same way
// as an unregistered tool: the capability simply does not exist for it.
func (r *run) invoke(ctx context.Context, call ToolCall) (map[string]any, time.Duration, error) {
	start := time.Now()

	if !r.active.boundTo(call.Name) {
		return nil, time.Since(start), &tool.Error{
			Kind: tool.KindNotFound, Tool: call.Name,
			Message: "not available to agent " + r.active.Name,
		}
	}

	callCtx := tool.WithState(ctx, r.state)
	out, err := r.engine.registry.Invoke(callCtx, call.Name, call.Args)
	return out, time.Since(start), err
}

// specsFor returns the model-facing tool specs for an agent: its bound
// registry tools plus the synthetic handoff tool when it may hand off.
func (r *run) specsFor(agent *Agent) []model.ToolSpec {
	specs := make([]model.ToolSpec, 0, len(agent.Tools)+1)
	for _, name := range agent.Tools {
		s, err := r.engine.registry.Spec(name)
		if err != nil {
			continue // validated at New; unreachable in practice
		}
		specs = append(specs, model.ToolSpec{
			Name:        s.Name,
			Description: s.Description,
			Schema:      s.Schema(),
		})
	}
	if len(agent.Handoffs) > 0 {
		specs = append(specs, r.handoffSpec(agent))
	}
	return specs
}

// handoffSpec builds the synthetic handoff tool advertised to agents
// with a nonempty allowed-target set.
func (r *run) handoffSpec(agent *Agent) model.ToolSpec {
	targets := make([]string, len(agent.Handoffs))
	copy(targets, agent.Handoffs)
	sort.Strings(targets)

	var b strings.Builder
	b.WriteString("Hand control to another agent. Allowed targets: ")
	for i, name := range targets {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		if other, ok := r.engine.agents[name]; ok && other.Description != "" {
			b.WriteString(" (" + other.Description + ")")
		}
	}

	spec := tool.Spec{
		Name:        HandoffTool,
		Description: b.String(),
		Params: []tool.Param{
			{Name: "to_agent", Type: "string", Description: "Name of the agent to hand control to.", Required: true},
			{Name: "reason", Type: "string", Description: "Why control is being transferred."},
		},
	}
	return model.ToolSpec{Name: spec.Name, Description: spec.Description, Schema: spec.Schema()}
}

// persistTurn saves the post-turn state snapshot when a store is
// configured.
func (r *run) persistTurn(ctx context.Context) error {
	if r.persistErr != nil {
		return r.persistErr
	}
	st := r.engine.cfg.store
	if st == nil {
		return nil
	}
	snapshot, err := r.state.Snapshot()
	if err != nil {
		return err
	}
	return st.SaveTurn(ctx, r.id, r.turn, r.active.Name, snapshot)
}

// emit forwards an event to the configured emitter and, when a store is
// configured, appends it to the run's persisted sequence.
func (r *run) emit(event emit.Event) {
	r.engine.cfg.emitter.Emit(event)

	if st := r.engine.cfg.store; st != nil && r.persistErr == nil {
		if err := st.AppendEvents(context.Background(), r.id, []emit.Event{event}); err != nil {
			r.persistErr = err
		}
	}
}

// finish builds the terminal RunResult.
func (r *run) finish(status, output string, err error) RunResult {
	return RunResult{
		Status: status,
		Output: output,
		Err:    err,
		Turns:  r.turn,
		State:  r.state,
	}
}

// compactJSON renders a tool result for the conversation history.
func compactJSON(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
