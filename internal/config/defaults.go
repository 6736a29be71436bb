package config

const (
	defaultConfigDir         = "~/.elodie"
	defaultHashFile          = "hash.json"
	defaultHistoryDB         = "history.db"
	defaultBufferKiB         = 64
	defaultMetadataProvider  = "exiftool"
	defaultExiftoolBinary    = "exiftool"
	defaultMetadataTimeout   = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogMaxSizeMB      = 50
	defaultLogMaxBackups     = 3
	defaultHistoryEnabled    = true
	defaultSkipHiddenEntries = false
)

// Metadata provider names accepted in metadata.provider.
const (
	ProviderExiftool = "exiftool"
	ProviderEXIF     = "exif"
	ProviderNone     = "none"
)

func defaultExtensions() []string {
	return []string{"jpg", "png"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ConfigDir: defaultConfigDir,
			HashFile:  defaultHashFile,
			HistoryDB: defaultHistoryDB,
		},
		Scan: Scan{
			Extensions: defaultExtensions(),
			BufferKiB:  defaultBufferKiB,
			SkipHidden: defaultSkipHiddenEntries,
		},
		Metadata: Metadata{
			Provider:       defaultMetadataProvider,
			ExiftoolBinary: defaultExiftoolBinary,
			TimeoutSeconds: defaultMetadataTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
		},
	}
}
