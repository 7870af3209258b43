// Package observability provides structured logging and telemetry setup.
package observability

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// InitLogger configures the global slog logger at the given level. Format is
// "json", "text" or "auto"; auto picks the colored text handler when stderr is
// a terminal and JSON otherwise. Logs go to stderr so that comparison diffs
// on stdout stay readable.
func InitLogger(level, format string) *slog.Logger {
	terminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logger := slog.New(newHandler(os.Stderr, ParseLevel(level), format, terminal))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
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

func newHandler(w io.Writer, lvl slog.Level, format string, terminal bool) slog.Handler {
	switch {
	case format == "json", format != "text" && !terminal:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		return tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			NoColor:    !terminal || runtime.GOOS == "windows",
			TimeFormat: "15:04:05",
		})
	}
}
