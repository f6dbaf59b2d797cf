package log

import (
	"context"
	"log/slog"
)

// bridgeHandler is a slog.Handler that routes records through the
// formatter/output pipeline, so code logging via slog and code logging via
// the facade produce identical output.
type bridgeHandler struct {
	logger *BaseLogger
	attrs  []slog.Attr
	group  string
}

func newBridgeHandler(logger *BaseLogger) *bridgeHandler {
	return &bridgeHandler{logger: logger}
}

// Enabled gates by the BaseLogger level.
func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.level <= fromSlogLevel(level)
}

// Handle converts the slog record to an Entry and writes it through the
// logger's formatter and outputs.
func (h *bridgeHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+r.NumAttrs())
	for i := range h.attrs {
		a := h.attrs[i]
		fields = append(fields, Field{Key: a.Key, Value: a.Value.Any()})
	}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, Field{Key: a.Key, Value: a.Value.Any()})
		return true
	})
	h.logger.log(fromSlogLevel(r.Level), r.Message, fields)
	return nil
}

// WithAttrs returns a copy of the handler with additional base attributes.
func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	if len(attrs) > 0 {
		nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	}
	return &nh
}

// WithGroup returns a copy of the handler; grouping is stored but otherwise
// not used by the pipeline.
func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.group = name
	return &nh
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level == slog.LevelInfo:
		return InfoLevel
	case level == slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
