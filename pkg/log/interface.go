// Package log provides the structured logging interface used by churnscope.
//
// The Logger interface is slog-compatible so that library packages stay
// independent of the backend. The pipeline itself runs with a RunLogger,
// a zerolog-backed logger that writes one human-readable log file per run.
//
// Example usage:
//
//	logger, err := log.NewRunLogger("./logs", "churn_library", time.Now())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("Testing import_data: SUCCESS",
//	    log.SamplesKey, 10127,
//	    log.FeaturesKey, 22,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are key-value pairs. Error treats a leading error value specially:
//
//	logger.Error("Testing import_data: The file wasn't found", err, log.PathKey, path)
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs conditions that do not stop execution.
	Warn(msg string, fields ...any)

	// Error logs a failure. If the first field is an error it is attached as the
	// error of the record.
	Error(msg string, fields ...any)

	// With returns a Logger that includes the given fields in every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level are emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, bool) {
	switch level {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any)                   {}
func (nopLogger) Info(string, ...any)                    {}
func (nopLogger) Warn(string, ...any)                    {}
func (nopLogger) Error(string, ...any)                   {}
func (n nopLogger) With(...any) Logger                   { return n }
func (nopLogger) Enabled(context.Context, Level) bool    { return false }
