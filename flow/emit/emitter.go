package emit

// Emitter receives observability events from a run.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files, JSONL archives
//   - Distributed tracing: OpenTelemetry
//   - In-memory capture for tests and replay
//
// Implementations should be:
//   - Non-blocking: avoid slowing down the run loop
//   - Thread-safe: the engine serializes emits within a run, but one
//     emitter may serve many runs
//   - Resilient: an emitter failure must never fail the run
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit must not panic. Errors should be handled internally
	// (logged, buffered, or dropped).
	Emit(event Event)
}

// Multi fans one event out to several emitters in order.
//
// A nil entry is skipped. Useful for combining, say, a LogEmitter for
// operators with a BufferedEmitter for post-run inspection.
type Multi []Emitter

// Emit forwards the event to every non-nil emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
