package config

const (
	// DefaultMaxRetry is the retry budget used when none is configured.
	DefaultMaxRetry = 0

	// DefaultAnalyzer is the retry analyzer consulted when none is configured.
	DefaultAnalyzer = "always"

	// DefaultWatcher is the watcher reporting to the console.
	DefaultWatcher = "console"
)

// GetDefaultSettings returns the default configuration: no retry, no
// configured timeouts and console reporting.
func GetDefaultSettings() Settings {
	return Settings{
		Retry: RetryConfig{
			MaxRetry:  DefaultMaxRetry,
			Analyzers: []string{DefaultAnalyzer},
		},
		Watchers: []string{DefaultWatcher},
	}
}
