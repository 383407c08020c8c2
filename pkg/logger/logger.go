// Package logger holds the process-wide slog logger used by docsim.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats accepted by NewFormat
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Default receives package-level calls; SetDefault replaces it
var Default = NewFormat(FormatJSON, "info", os.Stdout)

// ParseLevel maps a level name to a slog level; unknown names map to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewFormat builds a logger writing to output; format is "text" or anything else for JSON
func NewFormat(format, level string, output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, FormatText) {
		return slog.New(slog.NewTextHandler(output, opts))
	}
	return slog.New(slog.NewJSONHandler(output, opts))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// SetDefault replaces Default and the slog package default
func SetDefault(l *slog.Logger) {
	Default = l
	slog.SetDefault(l)
}

func Debug(msg string, args ...any) { Default.Debug(msg, args...) }

func Info(msg string, args ...any) { Default.Info(msg, args...) }

func Warn(msg string, args ...any) { Default.Warn(msg, args...) }

func Error(msg string, args ...any) { Default.Error(msg, args...) }
