// Package logging configures structured, daily-rotated logging for the
// codesearch CLI/MCP/HTTP entry points.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Setup initializes JSON-structured file logging under dbRoot and
// returns the configured logger plus a cleanup function that must be
// called on process exit.
func Setup(dbRoot, level string, writeToStderr bool) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(dbRoot); err != nil {
		return nil, nil, err
	}

	cfg := configFromEnv()
	writer, err := NewRotatingWriter(LogFilePath(dbRoot), cfg)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = writer
	if writeToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: parseLevel(level)})
	logger := slog.New(handler)

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
}

// configFromEnv reads CODESEARCH_LOG_RETENTION_DAYS,
// CODESEARCH_LOG_MAX_FILES and CODESEARCH_LOG_CLEANUP_INTERVAL_HOURS
// per spec.md §6, falling back to DefaultConfig for unset/invalid values.
func configFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("CODESEARCH_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("CODESEARCH_LOG_MAX_FILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxFiles = n
		}
	}
	if v := os.Getenv("CODESEARCH_LOG_CLEANUP_INTERVAL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CleanupInterval = time.Duration(n) * time.Hour
		}
	}
	return cfg
}

func parseLevel(level string) slog.Level {
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
