package engine

// Event represents an engine lifecycle event: a name plus optional fields.
type Event struct {
	Name   string
	Fields map[string]any
}

// Lifecycle event names.
const (
	EventLoadStart       = "load_start"
	EventTokenizerLoaded = "tokenizer_loaded"
	EventAdapterMerged   = "adapter_merged"
	EventReady           = "ready"
	EventLoadError       = "load_error"
	EventDrainStart      = "drain_start"
	EventDrainTimeout    = "drain_timeout"
	EventClosed          = "closed"
)

// EventPublisher receives events from the engine. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
