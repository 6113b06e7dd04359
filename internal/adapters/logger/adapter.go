// Package logger provides adapters for the logging interface.
package logger

import (
	"context"
)

// Logger defines the logging interface used throughout the application.
// External loggers that implement these methods can be wrapped with ZapAdapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]any)
	Debug(ctx context.Context, msg string, fields map[string]any)
	Warn(ctx context.Context, msg string, fields map[string]any)
	Error(ctx context.Context, msg string, err error, fields map[string]any)
}

// ZapAdapter adapts a Logger to the application's logging interface and
// stamps every entry with a fixed set of default fields (for example the
// repository root or the subcommand being run).
type ZapAdapter struct {
	log      Logger
	defaults map[string]any
}

// NewZapAdapter creates a new ZapAdapter wrapping the given logger.
func NewZapAdapter(log Logger) *ZapAdapter {
	return &ZapAdapter{log: log}
}

// With returns a copy of the adapter that adds fields to every entry.
// Fields passed to a single call win over defaults with the same key.
func (a *ZapAdapter) With(fields map[string]any) *ZapAdapter {
	merged := make(map[string]any, len(a.defaults)+len(fields))
	for k, v := range a.defaults {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ZapAdapter{log: a.log, defaults: merged}
}

// Info logs an info message.
func (a *ZapAdapter) Info(ctx context.Context, msg string, fields map[string]any) {
	a.log.Info(ctx, msg, a.fields(fields))
}

// Debug logs a debug message.
func (a *ZapAdapter) Debug(ctx context.Context, msg string, fields map[string]any) {
	a.log.Debug(ctx, msg, a.fields(fields))
}

// Warn logs a warning message.
func (a *ZapAdapter) Warn(ctx context.Context, msg string, fields map[string]any) {
	a.log.Warn(ctx, msg, a.fields(fields))
}

// Error logs an error message.
func (a *ZapAdapter) Error(ctx context.Context, msg string, err error, fields map[string]any) {
	a.log.Error(ctx, msg, err, a.fields(fields))
}

// fields merges the defaults under the call's fields without mutating either map.
func (a *ZapAdapter) fields(fields map[string]any) map[string]any {
	if len(a.defaults) == 0 {
		return fields
	}
	merged := make(map[string]any, len(a.defaults)+len(fields))
	for k, v := range a.defaults {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}
