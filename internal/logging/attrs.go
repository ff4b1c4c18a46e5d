package logging

import (
	"context"
	"log/slog"
	"time"
)

// Attr aliases slog.Attr so callers import a single logging package.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

// Error renders a nil error as "<nil>" rather than dropping the key.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// NewComponentLogger tags logger with component. A nil logger yields a no-op
// logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

const (
	defaultErrorHint  = "check logs for details"
	defaultWarnImpact = "operation completed with warnings"
	defaultErrImpact  = "operation did not complete"
)

// WarnWithContext logs a warning that always carries event_type, error_hint,
// and impact. Missing fields receive defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, enforce(attrs, eventType, defaultWarnImpact)...)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, enforce(attrs, eventType, defaultErrImpact)...)
}

func enforce(attrs []Attr, eventType, impact string) []any {
	var seenEvent, seenHint, seenImpact bool
	args := make([]any, 0, len(attrs)+3)
	for _, attr := range attrs {
		switch attr.Key {
		case FieldEventType:
			seenEvent = true
		case FieldErrorHint:
			seenHint = true
		case FieldImpact:
			seenImpact = true
		}
		args = append(args, attr)
	}
	if !seenEvent {
		args = append(args, String(FieldEventType, eventType))
	}
	if !seenHint {
		args = append(args, String(FieldErrorHint, defaultErrorHint))
	}
	if !seenImpact {
		args = append(args, String(FieldImpact, impact))
	}
	return args
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool { return false }

func (discardHandler) Handle(context.Context, slog.Record) error { return nil }

func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h discardHandler) WithGroup(string) slog.Handler { return h }
