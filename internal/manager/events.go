package manager

// Event names published by the manager.
const (
	EventLoadStart     = "load_start"
	EventLoadReady     = "load_ready"
	EventLoadError     = "load_error"
	EventGenerateStart = "generate_start"
	EventGenerateDone  = "generate_done"
	EventGenerateError = "generate_error"
	EventUnloadDone    = "unload_done"
	EventReaperStart   = "reaper_start"

	EventSpawnStart = "spawn_start"
	EventSpawnReady = "spawn_ready"
	EventSpawnExit  = "spawn_exit"
	EventSpawnStop  = "spawn_stop"
)

// Unload reasons carried in the "reason" field of unload_done.
const (
	ReasonManual   = "manual"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
	ReasonExited   = "exited" // runtime went away under a loaded handle
)

// Event represents a manager lifecycle event.
// Minimal and stable: name + model path and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
