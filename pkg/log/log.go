// Package log provides the structured logger shared by every Skitter
// component, wrapping zerolog the way the rest of the runtime expects:
// a global instance, component-scoped children, and small helpers.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger instance, set up by Init.
var Logger zerolog.Logger

// Level is a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init sets up the global Logger from cfg. Safe to call more than once;
// the package's init sets a default and cmd/skitter calls it once more at
// startup with the configured level, format and outputs.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// usable before Init is called, e.g. in tests
	Init(Config{Level: InfoLevel})
}

// WithComponent returns a child logger tagging every entry with component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNode returns a child logger tagging every entry with a runtime name.
func WithNode(name string) zerolog.Logger {
	return Logger.With().Str("node", name).Logger()
}

// WithDeployment returns a child logger tagging every entry with a
// deployment reference.
func WithDeployment(ref string) zerolog.Logger {
	return Logger.With().Str("deployment", ref).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(msg string, err error) { Logger.Error().Err(err).Msg(msg) }
