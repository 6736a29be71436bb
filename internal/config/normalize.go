package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeMetadata()
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ELODIE_CONFIG_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ConfigDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.ConfigDir) == "" {
		c.Paths.ConfigDir = defaultConfigDir
	}
	var err error
	if c.Paths.ConfigDir, err = expandPath(strings.TrimSpace(c.Paths.ConfigDir)); err != nil {
		return fmt.Errorf("paths.config_dir: %w", err)
	}
	c.Paths.HashFile = strings.TrimSpace(c.Paths.HashFile)
	if c.Paths.HashFile == "" {
		c.Paths.HashFile = defaultHashFile
	}
	c.Paths.HistoryDB = strings.TrimSpace(c.Paths.HistoryDB)
	if c.Paths.HistoryDB == "" {
		c.Paths.HistoryDB = defaultHistoryDB
	}
	if strings.HasPrefix(c.Paths.HistoryDB, "~") {
		if c.Paths.HistoryDB, err = expandPath(c.Paths.HistoryDB); err != nil {
			return fmt.Errorf("paths.history_db: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeScan() {
	if c.Scan.BufferKiB == 0 {
		c.Scan.BufferKiB = defaultBufferKiB
	}
	exts := make([]string, 0, len(c.Scan.Extensions))
	seen := make(map[string]struct{}, len(c.Scan.Extensions))
	for _, ext := range c.Scan.Extensions {
		// Case is preserved: extension matching is case-sensitive.
		normalized := strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	c.Scan.Extensions = exts
}

func (c *Config) normalizeMetadata() {
	c.Metadata.Provider = strings.ToLower(strings.TrimSpace(c.Metadata.Provider))
	if c.Metadata.Provider == "" {
		c.Metadata.Provider = defaultMetadataProvider
	}
	c.Metadata.ExiftoolBinary = strings.TrimSpace(c.Metadata.ExiftoolBinary)
	if c.Metadata.ExiftoolBinary == "" {
		c.Metadata.ExiftoolBinary = defaultExiftoolBinary
	}
	if c.Metadata.TimeoutSeconds == 0 {
		c.Metadata.TimeoutSeconds = defaultMetadataTimeout
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	if c.Logging.File != "" {
		var err error
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = defaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups < 0 {
		c.Logging.MaxBackups = 0
	}
	return nil
}
