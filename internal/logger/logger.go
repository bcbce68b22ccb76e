package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs a JSON slog logger on stdout as the process default.
func Init(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values mean info.
func ParseLevel(level string) slog.Level {
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

// With returns the default logger tagged with a component name.
func With(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
