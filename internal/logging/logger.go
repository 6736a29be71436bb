package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"elodie/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives log lines. Nil means stderr so stdout stays reserved
	// for command reports.
	Output io.Writer
	// FilePath, when set, adds a size-rotated log file next to Output.
	FilePath       string
	FileMaxSizeMB  int
	FileMaxBackups int
	Development    bool
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New constructs a slog logger using the provided options. The returned closer
// releases the rotating log file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	writer, closer := buildWriter(opts)

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(writer, levelVar, addSource)
	case "console":
		handler = newConsoleHandler(writer, levelVar, addSource, isTerminal(opts.Output) && strings.TrimSpace(opts.FilePath) == "")
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), closer, nil
}

// NewFromConfig creates a logger using application config values.
func NewFromConfig(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return New(OptionsFromConfig(cfg))
}

// OptionsFromConfig maps the logging section of cfg onto Options. Output is
// left nil so callers can redirect it.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Level: "info", Format: "console"}
	}
	return Options{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.File,
		FileMaxSizeMB:  cfg.Logging.MaxSizeMB,
		FileMaxBackups: cfg.Logging.MaxBackups,
	}
}

// buildWriter combines the primary output with an optional lumberjack file.
func buildWriter(opts Options) (io.Writer, io.Closer) {
	out := opts.Output
	path := strings.TrimSpace(opts.FilePath)
	if path == "" {
		return out, nopCloser{}
	}

	maxSize := opts.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: opts.FileMaxBackups,
		Compress:   false,
	}
	return io.MultiWriter(out, lj), lj
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
