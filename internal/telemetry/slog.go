package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// logLevel is shared by every handler installed through SetupLogger so the level
// can be changed at runtime (see config.WatchLogLevel) without rebuilding the logger.
var logLevel = new(slog.LevelVar)

// ParseLevel maps a configuration string to a slog.Level.
// Unknown or empty values resolve to info.
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

// SetupLogger configures the global slog default logger from the configured format
// ("json" for JSONHandler, anything else for TextHandler) and level.
// It returns the LevelVar backing the handler.
func SetupLogger(format, level string) *slog.LevelVar {
	return setupLogger(os.Stdout, format, level)
}

func setupLogger(w io.Writer, format, level string) *slog.LevelVar {
	lvl := ParseLevel(level)
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
	return logLevel
}

// SetLevel changes the level of the logger installed by SetupLogger.
func SetLevel(level string) {
	lvl := ParseLevel(level)
	if logLevel.Level() == lvl {
		return
	}
	logLevel.Set(lvl)
	slog.Info("log level changed", "level", lvl.String())
}
