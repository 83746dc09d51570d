// Package flow provides the core multi-agent orchestration engine for
// agentflow-go: a shared state record, named agents with bounded tool and
// handoff capability sets, and a turn-taking run loop that validates every
// handoff and enforces a turn budget.
package flow

import "errors"

// ErrHandoffRejected indicates that an agent requested a handoff to a
// target outside its statically declared allowed-target set. The run
// terminates; the rejected handoff is never executed silently.
var ErrHandoffRejected = errors.New("handoff target not in the caller's allowed set")

// ErrRunExhausted indicates that a run consumed its entire turn budget
// without producing a final output. This is the liveness guard against
// agents cycling handoffs indefinitely.
var ErrRunExhausted = errors.New("run exhausted its turn budget")

// ErrTerminalWriteFailed indicates that the run's single irrevocable
// external write failed after its bounded retries. It is always surfaced
// to the caller verbatim, never swallowed.
var ErrTerminalWriteFailed = errors.New("terminal write failed after bounded retries")
