// Package logger builds the process-wide slog logger: tinted console
// output in development, JSON in production, with an optional rotating
// file sink.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/salience/internal/env"
)

// Option configures the logger.
type Option func(*options)

type options struct {
	level     slog.Level
	logToFile bool
	logFile   string
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithLogToFile enables the rotating file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) { o.logToFile = enabled }
}

// WithLogFile sets the file sink path.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// New builds a logger for the given environment.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := options{
		level:   slog.LevelInfo,
		logFile: "logs/salience.log",
	}
	if environment == env.Development {
		o.level = slog.LevelDebug
	}
	for _, opt := range opts {
		opt(&o)
	}

	out := io.Writer(os.Stderr)
	if o.logToFile {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	var handler slog.Handler
	if environment == env.Production {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: o.level})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(handler)
}
