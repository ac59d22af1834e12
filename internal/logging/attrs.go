package logging

import (
	"context"
	"log/slog"
	"time"
)

type Attr = slog.Attr

// Defaults injected by WarnWithContext and ErrorWithContext when the caller
// leaves the field out.
const (
	DefaultErrorHint = "check logs for details"
	DefaultImpact    = "job continues without this result"
)

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// EventType names the machine-readable event a record describes.
func EventType(name string) Attr { return slog.String(FieldEventType, name) }

// Impact states what the failure means for the running job.
func Impact(text string) Attr { return slog.String(FieldImpact, text) }

// ErrorHint tells the operator where to look next.
func ErrorHint(text string) Attr { return slog.String(FieldErrorHint, text) }

// Action records a protocol action name.
func Action(name string) Attr { return slog.String(FieldAction, name) }

// Agent records the id of the agent a record concerns.
func Agent(id string) Attr { return slog.String(FieldAgentID, id) }

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// withDefaults appends each default whose key attrs does not already carry.
func withDefaults(attrs []Attr, defaults ...Attr) []Attr {
	for _, d := range defaults {
		present := false
		for _, a := range attrs {
			if a.Key == d.Key {
				present = true
				break
			}
		}
		if !present {
			attrs = append(attrs, d)
		}
	}
	return attrs
}

// WarnWithContext logs a recoverable pipeline problem. Records always carry
// event_type, error_hint and impact; missing ones get the package defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, EventType(eventType), ErrorHint(DefaultErrorHint), Impact(DefaultImpact))
	logger.Warn(msg, attrsToArgs(attrs)...)
}

// ErrorWithContext logs a job-level failure with event_type and error_hint.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	attrs = withDefaults(attrs, EventType(eventType), ErrorHint(DefaultErrorHint))
	logger.Error(msg, attrsToArgs(attrs)...)
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }
