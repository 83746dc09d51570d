// Package emit provides the run event model and pluggable emitters for
// agentflow-go. Every run produces an ordered event sequence (agent
// activations, tool calls and results, handoffs, and the final output)
// that a caller can stream for observability or persist for replay.
package emit

// Event kinds emitted over the life of a run, in the order they can occur.
const (
	// KindRunStarted marks the beginning of a run; Msg carries the task.
	KindRunStarted = "run_started"

	// KindAgentActivated marks an agent becoming the active agent,
	// including the root agent at run start.
	KindAgentActivated = "agent_activated"

	// KindToolCalled marks a tool invocation request; Meta carries the
	// call arguments.
	KindToolCalled = "tool_called"

	// KindToolResult marks a tool invocation completing; Meta carries
	// the result or error.
	KindToolResult = "tool_result"

	// KindHandoff marks a validated control transfer; Meta carries the
	// target and reason.
	KindHandoff = "handoff"

	// KindHandoffRejected marks a handoff to an undeclared target. The
	// run terminates after this event.
	KindHandoffRejected = "handoff_rejected"

	// KindFinalOutput marks the terminal output of a successful run.
	KindFinalOutput = "final_output"

	// KindRunFinished marks run termination; Meta carries the status.
	KindRunFinished = "run_finished"
)

// Event is a single observability record from a run.
//
// The sequence of events for one run is totally ordered and sufficient to
// reconstruct the run for auditing or debugging.
type Event struct {
	// RunID identifies the run that emitted this event.
	RunID string

	// Turn is the 1-indexed turn number, or zero for run-level events.
	Turn int

	// Agent names the active agent, or is empty for run-level events.
	Agent string

	// Kind is one of the Kind* constants.
	Kind string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta carries additional structured data. Common keys: "tool",
	// "args", "result", "error", "target", "reason", "status",
	// "duration_ms".
	Meta map[string]any
}
