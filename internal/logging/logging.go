package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures a single index's rotating file logger.
type Config struct {
	// IndexName names the index this logger belongs to; used to derive
	// FilePath when FilePath is left empty, so multiple indices opened
	// under one Arbor handle don't interleave into one file.
	IndexName string
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath overrides the derived "<IndexName>.log" destination.
	FilePath string
	// MaxSizeMB is the file size, in megabytes, that triggers rotation.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are retained.
	MaxFiles int
	// WriteToStderr additionally mirrors every record to stderr.
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for indexName's file logger.
func DefaultConfig(indexName string) Config {
	return Config{
		IndexName:     indexName,
		Level:         "info",
		FilePath:      DefaultLogPath(indexName),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with the level lowered to debug.
func DebugConfig(indexName string) Config {
	cfg := DefaultConfig(indexName)
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON slog.Logger backed by a rotating file (and
// optionally stderr), returning a cleanup func that flushes and closes the
// file. The caller is responsible for invoking cleanup, typically from
// Arbor.Close.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	path := cfg.FilePath
	if path == "" {
		path = DefaultLogPath(cfg.IndexName)
	}
	writer, err := NewRotatingWriter(path, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
	logger := slog.New(handler)
	if cfg.IndexName != "" {
		logger = logger.With("index", cfg.IndexName)
	}

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return logger, cleanup, nil
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
