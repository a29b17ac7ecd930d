package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions configures the optional rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewJSONLogger writes JSON records to stdout and, when file.Path is set, to a
// rotating file as well.
func NewJSONLogger(service, level string, file FileOptions) *slog.Logger {
	return slog.New(newHandler(stdoutWithFile(file), level)).With("service", service)
}

func newHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
}

func stdoutWithFile(file FileOptions) io.Writer {
	if strings.TrimSpace(file.Path) == "" {
		return os.Stdout
	}
	rotating := &lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    orDefault(file.MaxSizeMB, 50),
		MaxBackups: orDefault(file.MaxBackups, 5),
		MaxAge:     orDefault(file.MaxAgeDays, 14),
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotating)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
