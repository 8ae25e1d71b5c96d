package session

// Event names published on the session surface.
const (
	EventInitialized   = "initialized"
	EventDestroyed     = "destroyed"
	EventModelLoaded   = "model:loaded"
	EventModelUnloaded = "model:unloaded"
	EventInferStart    = "inference:start"
	EventInferToken    = "inference:token"
	EventInferProgress = "inference:progress"
	EventInferComplete = "inference:complete"
	EventInferError    = "inference:error"
	EventInferAbort    = "inference:abort"
	EventLoraLoaded    = "lora:loaded"
	EventCacheLoaded   = "cache:loaded"
	EventCacheCleared  = "cache:cleared"
)

// Event is a structured notification emitted by sessions.
type Event struct {
	Name      string
	SessionID string
	Fields    map[string]any
}

// EventPublisher receives session events. Implementations must not block;
// events are emitted from lifecycle and inference paths.
type EventPublisher interface {
	Publish(evt Event)
}

// noopPublisher drops all events. Used when no publisher is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
