package hooks

import (
	"context"
	"log/slog"

	"github.com/Skryldev/imageprep/core"
)

// SlogLogger adapts a *slog.Logger to core.Logger.  Fields are alternating
// key/value pairs, as slog expects.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps l; nil falls back to slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{log: l}
}

// Slog exposes the underlying logger.
func (s *SlogLogger) Slog() *slog.Logger { return s.log }

// With returns a logger that adds fields to every record.
func (s *SlogLogger) With(fields ...interface{}) *SlogLogger {
	return &SlogLogger{log: s.log.With(fields...)}
}

func (s *SlogLogger) emit(level slog.Level, msg string, fields []interface{}) {
	ctx := context.Background()
	if !s.log.Enabled(ctx, level) {
		return
	}
	s.log.Log(ctx, level, msg, fields...)
}

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.emit(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.emit(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.emit(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.emit(slog.LevelError, msg, fields) }

var _ core.Logger = (*SlogLogger)(nil)
