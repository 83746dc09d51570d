package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use cases:
//   - Deployments where event capture is not needed
//   - Disabling event emission without changing code
//
// Example usage:
//
//	emitter := emit.NewNullEmitter()
//	eng, err := flow.New(registry, agents, flow.WithEmitter(emitter))
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
//
// Returns a NullEmitter that discards all events. Safe for concurrent
// use and has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}
