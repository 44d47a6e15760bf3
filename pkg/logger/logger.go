// Package logger defines the logging facade used across patternrun.
// Library packages depend on the interface only; binaries plug in a concrete adapter.
package logger

import "strings"

type Level int8

const (
	Disabled Level = iota - 1 // Disabled turns logging off.
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel // FatalLevel logs then exits the program.
)

// ParseLevel maps a level name to a Level, defaulting to InfoLevel
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disabled", "off":
		return Disabled
	case "debug", "trace":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

type Logger interface {
	WithField(key string, value any) Logger  // WithField returns a logger with the given key-value pair.
	WithFields(fields map[string]any) Logger // WithFields returns a logger with the given fields.
	WithError(err error) Logger              // WithError returns a logger with the given error.

	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
	Fatal(args ...any)

	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	SetLevel(level Level)
	GetLevel() Level
}
