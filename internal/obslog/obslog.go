// Package obslog provides the structured logging backbone shared by the
// stack, coroutine, wormhole and pool packages of this module. It wraps logiface, using stumpy as the
// default JSON writer, and is nil-safe throughout: a nil *Logger silently
// discards every call, so callers never need to guard construction on
// whether logging was configured.
package obslog

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the handle every package in this module accepts as an optional
// constructor argument. The zero value is not valid; use New or Default.
type Logger struct {
	l *logiface.Logger[*stumpy.Event]
}

// New wraps an existing logiface logger, as returned by stumpy.L.New, or any
// other logiface.LoggerFactory[*stumpy.Event] construction.
func New(l *logiface.Logger[*stumpy.Event]) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{l: l}
}

// Default builds a Logger that writes through stumpy at or above the given
// level. options are passed to stumpy unchanged, so the writer and output
// format are whatever they configure, with stumpy's own defaults for
// anything they leave unset.
func Default(level logiface.Level, options ...stumpy.Option) *Logger {
	return New(stumpy.L.New(
		stumpy.L.WithStumpy(options...),
		stumpy.L.WithLevel(level),
	))
}

// Event is a single log entry under construction. It wraps the logiface
// builder so callers can chain field setters, and terminates with a call
// to Log.
type Event struct {
	b *logiface.Builder[*stumpy.Event]
}

func (l *Logger) build(level logiface.Level) Event {
	if l == nil || l.l == nil {
		return Event{}
	}
	return Event{b: l.l.Build(level)}
}

// Info starts an informational event.
func (l *Logger) Info() Event { return l.build(logiface.LevelInformational) }

// Debug starts a debug event.
func (l *Logger) Debug() Event { return l.build(logiface.LevelDebug) }

// Warn starts a warning event.
func (l *Logger) Warn() Event { return l.build(logiface.LevelWarning) }

// Error starts an error event.
func (l *Logger) Error() Event { return l.build(logiface.LevelError) }

// Str attaches a string field, a no-op on a discarded Event.
func (e Event) Str(key, val string) Event {
	if e.b == nil {
		return e
	}
	e.b.Str(key, val)
	return e
}

// Int64 attaches an integer field, a no-op on a discarded Event.
func (e Event) Int64(key string, val int64) Event {
	if e.b == nil {
		return e
	}
	e.b.Int64(key, val)
	return e
}

// Bool attaches a boolean field, a no-op on a discarded Event.
func (e Event) Bool(key string, val bool) Event {
	if e.b == nil {
		return e
	}
	e.b.Bool(key, val)
	return e
}

// Err attaches an error field, a no-op on a discarded Event.
func (e Event) Err(err error) Event {
	if e.b == nil {
		return e
	}
	e.b.Err(err)
	return e
}

// Log emits the event with the given message. Safe to call on a discarded
// (nil-backed) Event.
func (e Event) Log(msg string) {
	if e.b == nil {
		return
	}
	e.b.Log(msg)
}
