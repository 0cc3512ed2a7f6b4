package events

// Event is a structured state change produced by an engine transition.
type Event interface {
	EventType() string
}

// Emitter forwards events to downstream subscribers such as the RPC event
// feed or an external indexer.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding everything, letting engines
// treat event emission as optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(Event)

// Emit implements the Emitter interface.
func (f EmitterFunc) Emit(evt Event) { f(evt) }
