// Package log provides myiot's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by log/slog via
// a bridge handler that feeds our formatter/outputs pipeline, so both the
// facade and plain slog records end up in the same place.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("runner"), log.Str("service", "clock:tick"))
//	l.Info("service started", log.Int("errors", 0))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (level, text or json
// format, redacted keys). Redaction replaces values of the listed keys with
// [REDACTED], which keeps API tokens of producers out of the output.
//
// # Interop
//
// Libraries that log through the standard library (Pebble, paho) can be
// pointed at a Logger with RedirectStdLog or ToStdLogger.
package log
