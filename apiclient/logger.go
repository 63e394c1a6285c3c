package apiclient

import (
	"github.com/rs/zerolog"
)

// Level is the severity of a log entry.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger is the injected logging capability. Implementations receive
// leveled structured entries; the client never logs through anything
// else. NopLogger is the default.
type Logger interface {
	Log(level Level, msg string, fields map[string]any, err error)
}

// NopLogger discards all entries.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(Level, string, map[string]any, error) {}

// ZerologLogger adapts a zerolog.Logger to the Logger capability.
type ZerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger wraps the given zerolog logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// Log implements Logger.
func (z *ZerologLogger) Log(level Level, msg string, fields map[string]any, err error) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = z.l.Debug()
	case LevelInfo:
		ev = z.l.Info()
	case LevelWarn:
		ev = z.l.Warn()
	case LevelError:
		ev = z.l.Error()
	default:
		ev = z.l.Info()
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}
