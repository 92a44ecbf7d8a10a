package ggtile

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NewNopLogger creates a logger that silently discards all output.
func NewNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with bakes logging from the
// bake worker goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(NewNopLogger())
}

// SetLogger configures the logger for ggtile and all its sub-packages.
// By default, ggtile produces no log output. Call SetLogger to enable logging.
//
// Components take their logger when they are constructed: an explicit
// WithLogger option wins, otherwise the shared logger at that moment is
// used. Call SetLogger before creating renderers, stacks and queues;
// components that already exist keep the logger they started with. Pass nil
// to restore the silent default.
//
// Log levels used by ggtile:
//   - [slog.LevelDebug]: bake passes, viewport changes, snapshot restores
//   - [slog.LevelInfo]: render identity changes, backend recreation
//   - [slog.LevelWarn]: bake failures, provider release errors
//
// Example:
//
//	ggtile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = NewNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger used by ggtile.
// Sub-packages call this to share the same logger configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// LoggerOr returns l when it is non-nil and the current shared logger
// otherwise. Constructors call it once and keep the result.
func LoggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return Logger()
}
