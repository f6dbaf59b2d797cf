// Package log provides seqstore's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that routes records through
// the formatter/output pipeline, so output stays consistent whether code
// logs through this facade or through slog.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("store"), log.Str("topic", "t1"))
//	l.Info("sequence created", log.Int("size", 3))
//
// # Interop
//
// To integrate with libraries expecting *log.Logger (Pebble does this), use
// RedirectStdLog.
package log
