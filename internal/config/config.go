package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the application directory and the names of files kept in it.
type Paths struct {
	ConfigDir string `toml:"config_dir"`
	HashFile  string `toml:"hash_file"`
	HistoryDB string `toml:"history_db"`
}

// Scan contains traversal and hashing settings.
type Scan struct {
	// Workers is the hashing pool size. Zero means one worker per CPU.
	Workers int `toml:"workers"`
	// Extensions is the suffix allow-list. An empty list accepts every regular file.
	Extensions []string `toml:"extensions"`
	BufferKiB  int      `toml:"buffer_kib"`
	SkipHidden bool     `toml:"skip_hidden"`
}

// Metadata selects how capture timestamps are read from media files.
type Metadata struct {
	Provider       string `toml:"provider"`
	ExiftoolBinary string `toml:"exiftool_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format     string `toml:"format"`
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// History controls the run journal.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Config encapsulates all configuration values for elodie.
//
// Configuration sections by subsystem:
//   - Paths: config directory, hash index and history database names
//   - Scan: worker count, extension allow-list, read buffer size
//   - Metadata: capture timestamp provider
//   - Logging: log format, level and optional rotating file
//   - History: run journal toggle
type Config struct {
	Paths    Paths    `toml:"paths"`
	Scan     Scan     `toml:"scan"`
	Metadata Metadata `toml:"metadata"`
	Logging  Logging  `toml:"logging"`
	History  History  `toml:"history"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join(defaultConfigDir, "config.toml"))
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("elodie.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the application config directory.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.ConfigDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.ConfigDir, err)
	}
	return nil
}

// HashFilePath returns the location of the persisted fingerprint index. An
// empty name selects the configured hash file.
func (c *Config) HashFilePath(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.Paths.HashFile
	}
	return filepath.Join(c.Paths.ConfigDir, name)
}

// HistoryDBPath returns the location of the run journal database.
func (c *Config) HistoryDBPath() string {
	if filepath.IsAbs(c.Paths.HistoryDB) {
		return c.Paths.HistoryDB
	}
	return filepath.Join(c.Paths.ConfigDir, c.Paths.HistoryDB)
}

// WorkerCount resolves the hashing pool size.
func (c *Config) WorkerCount() int {
	if c.Scan.Workers > 0 {
		return c.Scan.Workers
	}
	return runtime.NumCPU()
}

// BufferSize returns the hashing read buffer size in bytes.
func (c *Config) BufferSize() int {
	return c.Scan.BufferKiB * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
