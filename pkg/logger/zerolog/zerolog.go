// Package zerolog adapts rs/zerolog to the logger.Logger facade with a compact,
// colored console layout.
package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/raykavin/patternrun/pkg/logger"
	"github.com/rs/zerolog"
)

// Options controls the console output
type Options struct {
	Level          string
	DateTimeLayout string
	Colored        bool
	JSON           bool
	Output         io.Writer // defaults to os.Stdout
}

// Adapter implements logger.Logger on top of a zerolog.Logger
type Adapter struct {
	*zerolog.Logger
}

// New builds an adapter writing to opts.Output
func New(opts Options) (*Adapter, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}

	if opts.DateTimeLayout == "" {
		opts.DateTimeLayout = time.DateTime
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var writer io.Writer = out
	if !opts.JSON {
		console := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !opts.Colored,
			TimeFormat: opts.DateTimeLayout,
		}
		if opts.Colored {
			console.FormatLevel = formatLevel
			console.FormatMessage = formatMessage
			console.FormatCaller = formatCaller
			console.FormatTimestamp = func(i any) string {
				return formatTimestamp(i, opts.DateTimeLayout)
			}
		}
		writer = console
	}

	zl := zerolog.New(writer).Level(level).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &Adapter{&zl}, nil
}

// GetLevel implements logger.Logger.
func (z *Adapter) GetLevel() logger.Level {
	return toLevel(z.Logger.GetLevel())
}

// SetLevel implements logger.Logger.
func (z *Adapter) SetLevel(level logger.Level) {
	updated := z.Logger.Level(toZerologLevel(level))
	z.Logger = &updated
}

func (z *Adapter) Debug(args ...any) { z.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Info(args ...any)  { z.Logger.Info().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Warn(args ...any)  { z.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Error(args ...any) { z.Logger.Error().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Fatal(args ...any) { z.Logger.Fatal().Msg(fmt.Sprint(args...)) }

func (z *Adapter) Debugf(format string, args ...any) { z.Logger.Debug().Msgf(format, args...) }
func (z *Adapter) Infof(format string, args ...any)  { z.Logger.Info().Msgf(format, args...) }
func (z *Adapter) Warnf(format string, args ...any)  { z.Logger.Warn().Msgf(format, args...) }
func (z *Adapter) Errorf(format string, args ...any) { z.Logger.Error().Msgf(format, args...) }
func (z *Adapter) Fatalf(format string, args ...any) { z.Logger.Fatal().Msgf(format, args...) }

// WithError implements logger.Logger.
func (z *Adapter) WithError(err error) logger.Logger {
	newLogger := z.With().Err(err).Logger()
	return &Adapter{&newLogger}
}

// WithField implements logger.Logger.
func (z *Adapter) WithField(key string, value any) logger.Logger {
	newLogger := z.With().Interface(key, value).Logger()
	return &Adapter{&newLogger}
}

// WithFields implements logger.Logger.
func (z *Adapter) WithFields(fields map[string]any) logger.Logger {
	newLogger := z.With().Fields(fields).Logger()
	return &Adapter{&newLogger}
}

func toLevel(level zerolog.Level) logger.Level {
	switch level {
	case zerolog.Disabled:
		return logger.Disabled
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return logger.DebugLevel
	case zerolog.WarnLevel:
		return logger.WarnLevel
	case zerolog.ErrorLevel:
		return logger.ErrorLevel
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return logger.FatalLevel
	default:
		return logger.InfoLevel
	}
}

func toZerologLevel(level logger.Level) zerolog.Level {
	switch level {
	case logger.Disabled:
		return zerolog.Disabled
	case logger.DebugLevel:
		return zerolog.DebugLevel
	case logger.WarnLevel:
		return zerolog.WarnLevel
	case logger.ErrorLevel:
		return zerolog.ErrorLevel
	case logger.FatalLevel:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func formatLevel(i any) string {
	switch i {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[FTL]")
	default:
		return term.Whitef("[UNK]")
	}
}

func formatMessage(i any) string {
	const width = 72

	msg, ok := i.(string)
	if !ok || len(msg) == 0 {
		return ">"
	}

	if len(msg) < width {
		msg += strings.Repeat(" ", width-len(msg))
	}

	return term.Whitef("> %s", msg)
}

func formatCaller(i any) string {
	const fileWidth = 16

	fname, ok := i.(string)
	if !ok || len(fname) == 0 {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(fname), ":")
	if !found {
		return term.Yellowf("[%s]", file)
	}

	if len(file) > fileWidth {
		file = file[:fileWidth]
	}

	return term.Yellowf("[%-*s:%4s]", fileWidth, file, line)
}

func formatTimestamp(i any, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		raw = ts.In(time.Local).Format(layout)
	}

	return term.Cyanf("[%s]", raw)
}
