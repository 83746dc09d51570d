package tool

// Error kinds for registry invocation failures.
const (
	// KindNotFound means the requested tool is not registered.
	KindNotFound = "not_found"

	// KindInvalidArgs means the call arguments failed validation
	// against the tool's declared parameters.
	KindInvalidArgs = "invalid_args"

	// KindExternalFailure means the tool ran and failed, typically an
	// unreachable or erroring external system.
	KindExternalFailure = "external_failure"
)

// Error represents a structured tool invocation failure.
//
// The engine inspects Kind to decide whether a failure is absorbed into
// the conversation (reads, validation) or terminates the run (terminal
// writes that exhaust their retries).
type Error struct {
	// Kind is a machine-readable failure class, one of the Kind*
	// constants.
	Kind string

	// Tool names the tool involved.
	Tool string

	// Message is the human-readable error description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Tool != "" {
		return "tool " + e.Tool + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *Error) Unwrap() error {
	return e.Cause
}
