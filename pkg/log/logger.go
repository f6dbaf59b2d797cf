package log

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Fields is a map of field names to values.
type Fields map[string]interface{}

// Entry represents a single log entry handed to formatters and outputs.
type Entry struct {
	Level     Level
	Message   string
	Fields    Fields
	Timestamp time.Time
	Error     error
}

// Logger defines the logging interface for seqstore components.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger carrying additional fields.
	With(fields ...Field) Logger
	// WithError returns a child logger carrying an error field.
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Formatter defines the interface for formatting log entries.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Output defines the interface for log outputs.
type Output interface {
	Write(entry *Entry, formatted []byte) error
	Close() error
}

// LoggerOption is a function that configures a logger.
type LoggerOption func(*BaseLogger)

// BaseLogger implements the Logger interface.
type BaseLogger struct {
	level      Level
	fields     []Field
	formatter  Formatter
	outputs    []Output
	slogLogger *slog.Logger
}

// NewLogger creates a new logger with the given options.
func NewLogger(options ...LoggerOption) Logger {
	logger := &BaseLogger{
		level:     InfoLevel,
		formatter: &TextFormatter{},
	}
	for _, option := range options {
		option(logger)
	}
	if len(logger.outputs) == 0 {
		logger.outputs = append(logger.outputs, NewConsoleOutput())
	}
	logger.slogLogger = slog.New(newBridgeHandler(logger))
	return logger
}

// NewNop returns a logger that discards everything. Useful as a default for
// injected dependencies.
func NewNop() Logger {
	return NewLogger(WithOutput(nullOutput{}))
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(l *BaseLogger) { l.level = level }
}

// WithFormatter sets the log formatter.
func WithFormatter(formatter Formatter) LoggerOption {
	return func(l *BaseLogger) { l.formatter = formatter }
}

// WithOutput adds an output to the logger.
func WithOutput(output Output) LoggerOption {
	return func(l *BaseLogger) { l.outputs = append(l.outputs, output) }
}

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	merged := Fields{}
	for _, f := range l.fields {
		merged[f.Key] = f.Value
	}
	var logErr error
	for _, f := range fields {
		if f.Key == errorFieldKey {
			if e, ok := f.Value.(error); ok {
				logErr = e
				continue
			}
		}
		merged[f.Key] = f.Value
	}
	entry := &Entry{
		Level:     level,
		Message:   msg,
		Fields:    merged,
		Timestamp: time.Now(),
		Error:     logErr,
	}
	formatted, err := l.formatter.Format(entry)
	if err != nil {
		return
	}
	for _, out := range l.outputs {
		_ = out.Write(entry, formatted)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child logger with additional bound fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	child := &BaseLogger{
		level:     l.level,
		fields:    append(append([]Field{}, l.fields...), fields...),
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	child.slogLogger = slog.New(newBridgeHandler(child))
	return child
}

// WithError returns a child logger with a bound error field.
func (l *BaseLogger) WithError(err error) Logger {
	return l.With(Err(err))
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return l.level }
