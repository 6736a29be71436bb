package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ConfigDir) == "" {
		return errors.New("paths.config_dir must be set")
	}
	if err := ValidateFileName(c.Paths.HashFile); err != nil {
		return fmt.Errorf("paths.hash_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.HistoryDB) == "" {
		return errors.New("paths.history_db must be set")
	}
	return nil
}

func (c *Config) validateScan() error {
	if c.Scan.Workers < 0 {
		return errors.New("scan.workers must be zero (auto) or positive")
	}
	if c.Scan.BufferKiB <= 0 {
		return errors.New("scan.buffer_kib must be positive")
	}
	for _, ext := range c.Scan.Extensions {
		if strings.ContainsAny(ext, `/\`) {
			return fmt.Errorf("scan.extensions: %q must not contain path separators", ext)
		}
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Provider {
	case ProviderExiftool, ProviderEXIF, ProviderNone:
	default:
		return fmt.Errorf("metadata.provider: unsupported value %q (want %s, %s or %s)",
			c.Metadata.Provider, ProviderExiftool, ProviderEXIF, ProviderNone)
	}
	if c.Metadata.TimeoutSeconds <= 0 {
		return errors.New("metadata.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

// ValidateFileName checks that name is a bare file name that stays inside the
// config directory.
func ValidateFileName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("file name must be set")
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%q must be a file name, not a path", name)
	}
	return nil
}
