// Package logging builds the process-wide slog logger. Output format and
// level come from the LOG_FORMAT (text/json) and LOG_LEVEL environment
// variables; without LOG_FORMAT, a terminal gets text and everything else
// gets JSON.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// New creates a logger configured from the environment.
func New() *slog.Logger {
	level, ok := levelNames[strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))]
	if !ok {
		level = slog.LevelInfo
	}

	wd, _ := os.Getwd()
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: shortenSource(wd),
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "text" || (format == "" && isTerminal(os.Stdout)) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// SetDefault creates a logger, installs it as the slog default, and
// returns it.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// shortenSource rewrites source paths relative to the working directory so
// log lines stay readable.
func shortenSource(wd string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.SourceKey {
			return a
		}
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		if rel, err := filepath.Rel(wd, src.File); err == nil {
			src.File = rel
		} else {
			src.File = filepath.Base(src.File)
		}
		return a
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}
