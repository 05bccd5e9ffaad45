package renderer

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger used by the engine. By default the engine
// logs nothing. Pass nil to restore that.
//
// Levels:
//   - [slog.LevelDebug]: per-frame diagnostics, skipped frames
//   - [slog.LevelInfo]: adapter selected, surface configured, engine ready
//   - [slog.LevelWarn]: surface reconfigured after a lost or outdated texture
//
// Backends passed to New that implement SetLogger(*slog.Logger) receive the
// same logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current engine logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(v any) {
	if s, ok := v.(loggerSetter); ok {
		s.SetLogger(Logger())
	}
}
