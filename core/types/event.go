package types

// Event is the wire form of a state-transition event: a type tag plus flat
// string attributes. Attributes carry old/new values wherever a field changed
// so an indexer can reconstruct the transition from the stream alone.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Copy returns a deep copy of the event so journal writers and subscribers
// cannot mutate each other's view.
func (e *Event) Copy() *Event {
	if e == nil {
		return nil
	}
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	return &Event{Type: e.Type, Attributes: attrs}
}
