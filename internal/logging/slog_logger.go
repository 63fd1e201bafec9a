// Package logging implements ports.Logger on top of log/slog, matching the
// structured key-value call shape already used (inconsistently, against a
// stdlib *log.Logger field) in the teacher's connection manager.
package logging

import (
	"log/slog"
	"os"

	"github.com/fincept/gateway/internal/ports"
)

// SlogLogger adapts a *slog.Logger to ports.Logger.
type SlogLogger struct {
	base *slog.Logger
}

var _ ports.Logger = (*SlogLogger)(nil)

// New returns a SlogLogger writing structured text to os.Stdout.
func New() *SlogLogger {
	return &SlogLogger{base: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))}
}

// NewJSON returns a SlogLogger writing structured JSON, useful when logs
// are shipped to a collector rather than read on a terminal.
func NewJSON() *SlogLogger {
	return &SlogLogger{base: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))}
}

func attrs(category string, data map[string]any) []any {
	out := make([]any, 0, 2+2*len(data))
	out = append(out, "category", category)
	for k, v := range data {
		out = append(out, k, v)
	}
	return out
}

func (l *SlogLogger) Debug(category, message string, data map[string]any) {
	l.base.Debug(message, attrs(category, data)...)
}

func (l *SlogLogger) Info(category, message string, data map[string]any) {
	l.base.Info(message, attrs(category, data)...)
}

func (l *SlogLogger) Warn(category, message string, data map[string]any) {
	l.base.Warn(message, attrs(category, data)...)
}

func (l *SlogLogger) Error(category, message string, data map[string]any) {
	l.base.Error(message, attrs(category, data)...)
}
