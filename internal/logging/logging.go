// Package logging wires log/slog with a JSON handler onto a size-rotated
// file under ~/.manualdex/logs/, optionally mirrored to stderr. MCP stdio
// transports reserve stdout for JSON-RPC, so the server mode logs to file
// only.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config selects the log level, destination file and rotation bounds.
type Config struct {
	Level         string // debug, info, warn, error
	FilePath      string // empty disables file logging
	MaxSizeMB     int
	MaxFiles      int
	WriteToStderr bool
}

// DefaultConfig logs at info to the default file and mirrors to stderr.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON slog.Logger per cfg and returns it with a cleanup
// function that flushes and closes the underlying file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		out = w
		if cfg.WriteToStderr {
			out = io.MultiWriter(w, os.Stderr)
		}
		cleanup = func() {
			_ = w.Sync()
			_ = w.Close()
		}
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: LevelFromString(cfg.Level)})
	return slog.New(handler), cleanup, nil
}

// SetupMCPMode installs a file-only debug logger as the process default.
// Nothing may reach stdout or stderr while an MCP stdio transport is live.
func SetupMCPMode() (func(), error) {
	cfg := DebugConfig()
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// LevelFromString maps a config string onto slog.Level, defaulting to info.
func LevelFromString(level string) slog.Level {
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

// DefaultLogDir is ~/.manualdex/logs, or a temp-dir fallback when no home
// directory is resolvable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".manualdex", "logs")
	}
	return filepath.Join(home, ".manualdex", "logs")
}

// DefaultLogPath is the daemon's log file inside DefaultLogDir.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "manualdexd.log")
}
