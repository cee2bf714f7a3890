package events

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (journal, RPC stream,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for engines constructed without an emitter.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// FuncEmitter adapts a plain function into an Emitter. The node uses it to fan
// events out to the journal and live subscribers without a dedicated type per
// sink.
type FuncEmitter func(Event)

// Emit implements the Emitter interface.
func (f FuncEmitter) Emit(evt Event) {
	if f == nil {
		return
	}
	f(evt)
}
