package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"sort"
	"time"
)

// TextFormatter renders entries as "ts LEVEL message k=v k=v".
type TextFormatter struct {
	// DisableTimestamp omits the timestamp prefix. Used in tests.
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(time.RFC3339))
		buf.WriteByte(' ')
	}
	buf.WriteString(entry.Level.String())
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)
	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	obj := map[string]interface{}{
		"ts":    entry.Timestamp.Format(time.RFC3339Nano),
		"level": entry.Level.String(),
		"msg":   entry.Message,
	}
	for k, v := range entry.Fields {
		obj[k] = v
	}
	if entry.Error != nil {
		obj["error"] = entry.Error.Error()
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ConsoleOutput writes formatted entries to stderr.
type ConsoleOutput struct{}

// NewConsoleOutput returns an Output writing to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{} }

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	_, err := os.Stderr.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// nullOutput discards all entries.
type nullOutput struct{}

func (nullOutput) Write(*Entry, []byte) error { return nil }
func (nullOutput) Close() error               { return nil }

// RedirectStdLog routes the standard library's default logger through the
// provided Logger at info level. Pebble and other dependencies log via the
// stdlib logger.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{logger: logger})
}

type stdLogWriter struct{ logger Logger }

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	if msg != "" {
		w.logger.Info(msg)
	}
	return len(p), nil
}
