package log

// Logger receives protocol trace events.
// A nil Logger or NoopLogger disables tracing.
type Logger interface {
	// Log records one event. Implementations must be safe for concurrent
	// use; sessions call Log inline on their read and write paths.
	Log(event Event)
}

// NoopLogger discards all events. Its zero value is ready to use.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
