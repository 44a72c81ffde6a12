package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level selects how much of the wrapper's own log is echoed to stderr. Every
// record is persisted to the durable log regardless of the level.
type Level string

const (
	// LevelDev echoes every record.
	LevelDev Level = "dev"
	// LevelServe echoes only error and fatal records.
	LevelServe Level = "serve"
	// LevelInfo echoes info records and above.
	LevelInfo Level = "info"
	// LevelWarn echoes warnings and above.
	LevelWarn Level = "warn"
	// LevelError echoes errors and above.
	LevelError Level = "error"
)

// DefaultLevel is used when --log-level is omitted.
const DefaultLevel = LevelServe

var validLevels = []Level{LevelDev, LevelServe, LevelInfo, LevelWarn, LevelError}

// ValidLevels returns the recognised verbosity levels in display order.
func ValidLevels() []Level {
	return append([]Level(nil), validLevels...)
}

// ParseLevel validates a verbosity token.
func ParseLevel(value string) (Level, error) {
	for _, lvl := range validLevels {
		if string(lvl) == value {
			return lvl, nil
		}
	}
	return "", &Error{Field: "log-level", Value: value, Reason: "invalid log level"}
}

// EchoThreshold maps the verbosity to the minimum slog level echoed to stderr.
func (l Level) EchoThreshold() slog.Level {
	switch l {
	case LevelDev:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (l Level) String() string {
	return string(l)
}

func joinLevels() string {
	names := make([]string, len(validLevels))
	for i, lvl := range validLevels {
		names[i] = string(lvl)
	}
	return strings.Join(names, ", ")
}

// Options is the parsed command line. It is not modified after ParseArgs
// returns.
type Options struct {
	LogLevel  Level
	ChildArgs []string
}

// Error reports an invalid or missing configuration value.
type Error struct {
	Field  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	switch {
	case e.Reason == "invalid log level":
		return fmt.Sprintf("Invalid log level: %s. Valid levels: %s", e.Value, joinLevels())
	case e.Value == "":
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	default:
		return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
	}
}
