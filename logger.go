package unixtransport

import "log/slog"

// Logger is the structured-logging surface the transport writes to:
// lifecycle events at info level, per-call send/receive failures at debug
// level. *slog.Logger satisfies it as-is; anything else plugs in through
// LoggerOption.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// defaultLogger is what a transport logs to when no LoggerOption is given.
func defaultLogger() Logger {
	return slog.Default()
}
