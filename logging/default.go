package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// DefaultLogger is the logrus-backed implementation of Logger.
// Warn, Error and Fatal are colored when the output is a terminal.
type DefaultLogger struct {
	entry *logrus.Entry
	level Level
}

// Options configures NewDefaultLoggerWithOptions
type Options struct {
	Output io.Writer
	Level  Level
	JSON   bool
	Colors bool
}

// NewDefaultLogger creates a new default logger writing text to stderr
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerWithOptions(Options{
		Output: os.Stderr,
		Level:  InfoLevel,
		Colors: isTerminal(os.Stderr),
	})
}

// NewDefaultLoggerNoColor creates a new default logger without colored output
func NewDefaultLoggerNoColor() *DefaultLogger {
	return NewDefaultLoggerWithOptions(Options{
		Output: os.Stderr,
		Level:  InfoLevel,
	})
}

// NewDefaultLoggerWithOptions builds a logger from explicit options
func NewDefaultLoggerWithOptions(opts Options) *DefaultLogger {
	base := logrus.New()
	if opts.Output != nil {
		base.SetOutput(opts.Output)
	}
	// Filtering happens in DefaultLogger.log so that child loggers can carry
	// their own level.
	base.SetLevel(logrus.TraceLevel)

	if opts.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   opts.Colors,
			DisableColors: !opts.Colors,
		})
	}

	return &DefaultLogger{
		entry: logrus.NewEntry(base),
		level: opts.Level,
	}
}

func isTerminal(f *os.File) bool {
	if fileInfo, _ := f.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	entry := d.entry
	for _, f := range fields {
		entry = entry.WithFields(logrus.Fields(f))
	}
	if err != nil {
		entry = entry.WithError(err)
	}

	if level == FatalLevel {
		entry.Fatal(msg)
		return
	}
	entry.Log(toLogrusLevel(level), msg)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		entry: d.entry.WithFields(logrus.Fields(fields)),
		level: d.level,
	}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything. Tests install it with SetGlobalLogger(nil).
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
