// Package logger provides the structured logger shared by the event
// store core and its storage drivers.
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const loggerKey contextKey = "logger"

var global zerolog.Logger

func init() {
	global = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Initialize configures the global logger. level is one of
// debug/info/warn/error; format "console" renders human-readable
// output, anything else (including "") renders line-delimited JSON.
func Initialize(level, format string) {
	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	logLevel := zerolog.InfoLevel
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	global = zerolog.New(output).With().Timestamp().Logger()
}

// Get returns the global logger.
func Get() *zerolog.Logger {
	return &global
}

// FromContext retrieves the logger carried on ctx, falling back to the
// global logger if none was attached.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &global
}

// WithContext attaches logger to ctx.
func WithContext(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithStream returns a context carrying a logger annotated with the
// stream's canonical id, for engines to thread through an operation.
func WithStream(ctx context.Context, canonical string) context.Context {
	l := FromContext(ctx).With().Str("stream", canonical).Logger()
	return WithContext(ctx, &l)
}
