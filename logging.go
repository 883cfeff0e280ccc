package grid

import "time"

// LogEvent describes an engine, feature or storage operation for logging.
type LogEvent struct {
	Component string
	Operation string
	Key       string
	Duration  time.Duration
	Err       error
	Fields    map[string]any
}

// Logger records grid events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// NopLogger returns a Logger that drops every event.
func NopLogger() Logger {
	return noopLogger{}
}

// LoggerOrNop returns logger, or the noop logger when logger is nil.
func LoggerOrNop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}
