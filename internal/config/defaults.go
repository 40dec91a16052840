package config

// Default values applied after parsing. Anything a user leaves out behaves
// like the plain procedure: build in ., write dist/, upload to pypi.
const (
	defaultPython        = "python3"
	defaultTool          = "auto"
	defaultDistDir       = "dist"
	defaultRepository    = "pypi"
	defaultUploadTimeout = "5m"
	defaultHistoryPath   = ".wheelwright/history.db"
	defaultSubjectPrefix = "wheelwright.releases"
	defaultListen        = ":8080"
	defaultQueueSize     = 16
	defaultWorkers       = 1
	defaultRetryBackoff  = RetryBackoffExponential
	defaultInitialDelay  = "1s"
	defaultMaxDelay      = "30s"
)

func applyDefaults(cfg *Config) {
	if cfg.Project.Path == "" {
		cfg.Project.Path = "."
	}
	if cfg.Project.Python == "" {
		cfg.Project.Python = defaultPython
	}

	if cfg.Build.Tool == "" {
		cfg.Build.Tool = defaultTool
	}
	if cfg.Build.DistDir == "" {
		cfg.Build.DistDir = defaultDistDir
	}

	if cfg.Upload.Repository == "" {
		cfg.Upload.Repository = defaultRepository
	}
	if cfg.Upload.Timeout == "" {
		cfg.Upload.Timeout = defaultUploadTimeout
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = defaultSubjectPrefix
	}

	if cfg.Daemon != nil {
		if cfg.Daemon.Listen == "" {
			cfg.Daemon.Listen = defaultListen
		}
		if cfg.Daemon.QueueSize == 0 {
			cfg.Daemon.QueueSize = defaultQueueSize
		}
		if cfg.Daemon.Workers == 0 {
			cfg.Daemon.Workers = defaultWorkers
		}
		if cfg.Daemon.Retry.Backoff == "" {
			cfg.Daemon.Retry.Backoff = defaultRetryBackoff
		}
		if cfg.Daemon.Retry.InitialDelay == "" {
			cfg.Daemon.Retry.InitialDelay = defaultInitialDelay
		}
		if cfg.Daemon.Retry.MaxDelay == "" {
			cfg.Daemon.Retry.MaxDelay = defaultMaxDelay
		}
	}
}
