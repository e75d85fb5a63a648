package config

const (
	defaultLibraryDir      = "~/comics"
	defaultImportDir       = "~/comics/import"
	defaultCacheDir        = "~/.local/share/longbox/cache"
	defaultDataDir         = "~/.local/share/longbox"
	defaultLogDir          = "~/.local/share/longbox/logs"
	defaultAPIBind         = "127.0.0.1:7612"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultErrorThreshold  = 10
	defaultBatchSize       = 10
	defaultRenamingRule    = "{series}/{series} #{number} ({year})"
	defaultPollInterval    = 30
	defaultRequestTimeout  = 30
	defaultMetadataBaseURL = "https://comicvine.gamespot.com/api"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			ImportDir:  defaultImportDir,
			CacheDir:   defaultCacheDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Pipeline: Pipeline{
			ErrorThreshold: defaultErrorThreshold,
			BatchSize:      defaultBatchSize,
			RenamingRule:   defaultRenamingRule,
			PollInterval:   defaultPollInterval,
		},
		Metadata: Metadata{
			BaseURL:        defaultMetadataBaseURL,
			RequestTimeout: defaultRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
	}
}
