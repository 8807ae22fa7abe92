package chain

// EventSink observes appended actions. Sinks are invoked synchronously
// after the action is durably stored, in registration order, under the
// lineage lock; a slow sink slows appends. Sinks must not append.
type EventSink interface {
	ActionAppended(AppendEvent)
}

// AppendEvent is the notification payload delivered to sinks.
type AppendEvent struct {
	ActionID string
	Lineage  string
	Kind     string
	Sequence int64

	// Deduplicated reports that the append was absorbed by an existing
	// action via its idempotency key; ActionID names the original.
	Deduplicated bool
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(AppendEvent)

// ActionAppended implements EventSink.
func (f SinkFunc) ActionAppended(ev AppendEvent) {
	f(ev)
}
