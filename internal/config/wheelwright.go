// Package config loads and validates the wheelwright configuration file.
//
// Configuration is optional for one-shot commands: with no file present the
// defaults reproduce the plain release procedure (project in the current
// directory, dist/ output, upload to pypi).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/index"
)

// DefaultConfigPath is the config file looked up when -c is not given.
const DefaultConfigPath = "wheelwright.yaml"

// Config is the root of the wheelwright configuration file.
type Config struct {
	Project      ProjectConfig               `yaml:"project,omitempty"`
	Build        BuildConfig                 `yaml:"build,omitempty"`
	Check        CheckConfig                 `yaml:"check,omitempty"`
	Upload       UploadConfig                `yaml:"upload,omitempty"`
	Repositories map[string]RepositoryConfig `yaml:"repositories,omitempty"`
	Git          GitConfig                   `yaml:"git,omitempty"`
	History      HistoryConfig               `yaml:"history,omitempty"`
	Events       EventsConfig                `yaml:"events,omitempty"`
	Metrics      MetricsConfig               `yaml:"metrics,omitempty"`
	Daemon       *DaemonConfig               `yaml:"daemon,omitempty"`
}

// ProjectConfig locates the Python project and its interpreter.
type ProjectConfig struct {
	Path   string `yaml:"path,omitempty"`   // project root, defaults to "."
	Python string `yaml:"python,omitempty"` // interpreter binary, defaults to "python3"
}

// BuildConfig controls the external distribution build.
type BuildConfig struct {
	Tool       string      `yaml:"tool,omitempty"`        // auto|build|setup
	DistDir    string      `yaml:"dist_dir,omitempty"`    // relative to project path
	PythonPath string      `yaml:"python_path,omitempty"` // prepended to PYTHONPATH for the build subprocess
	Hooks      HooksConfig `yaml:"hooks,omitempty"`
}

// HooksConfig holds shell snippets run around the build.
type HooksConfig struct {
	Before []string `yaml:"before,omitempty"`
	After  []string `yaml:"after,omitempty"`
}

// CheckConfig controls pre-upload distribution checks.
type CheckConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"` // defaults to true
	Strict  bool  `yaml:"strict,omitempty"`  // treat check warnings as fatal
}

// IsEnabled reports whether checks run, honoring the default of true.
func (c CheckConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// UploadConfig selects the upload target and its behavior.
type UploadConfig struct {
	Repository   string `yaml:"repository,omitempty"` // named target, defaults to "pypi"
	SkipExisting bool   `yaml:"skip_existing,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"` // per-file upload timeout, defaults to "5m"
}

// TimeoutDuration returns the parsed upload timeout.
// Validation guarantees the string parses; the fallback covers a zero Config.
func (u UploadConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(u.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// RepositoryConfig declares a named upload target.
// Credentials may come from the environment via ${VAR} expansion.
type RepositoryConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// GitConfig controls interaction with the project's git checkout.
type GitConfig struct {
	RequireClean bool  `yaml:"require_clean,omitempty"` // refuse to release from a dirty worktree
	Annotate     *bool `yaml:"annotate,omitempty"`      // record commit/tag in history and events, defaults to true
}

// ShouldAnnotate reports whether git metadata is collected, honoring the default of true.
func (g GitConfig) ShouldAnnotate() bool {
	return g.Annotate == nil || *g.Annotate
}

// HistoryConfig locates the release history store.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // sqlite file, defaults to .wheelwright/history.db
}

// HistoryPath returns the history database location, resolving relative paths
// against the project directory.
func (c *Config) HistoryPath() string {
	p := c.History.Path
	if p == "" {
		p = ".wheelwright/history.db"
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Project.Path, p)
	}
	return p
}

// EventsConfig enables release event publishing.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`       // empty disables publishing
	SubjectPrefix string `yaml:"subject_prefix,omitempty"` // defaults to "wheelwright.releases"
}

// MetricsConfig enables the Prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// DaemonConfig configures continuous release mode.
type DaemonConfig struct {
	Listen      string      `yaml:"listen,omitempty"`   // admin HTTP address, defaults to ":8080"
	Schedule    string      `yaml:"schedule,omitempty"` // cron expression, empty disables
	Interval    string      `yaml:"interval,omitempty"` // duration between runs, empty disables
	QueueSize   int         `yaml:"queue_size,omitempty"`
	Workers     int         `yaml:"workers,omitempty"`
	WatchConfig bool        `yaml:"watch_config,omitempty"` // reload on config file change
	Retry       RetryConfig `yaml:"retry,omitempty"`
}

// IntervalDuration returns the parsed scheduling interval, zero when unset.
func (d DaemonConfig) IntervalDuration() time.Duration {
	if d.Interval == "" {
		return 0
	}
	dur, err := time.ParseDuration(d.Interval)
	if err != nil {
		return 0
	}
	return dur
}

// RetryConfig controls retries of transient release failures in daemon mode.
type RetryConfig struct {
	MaxRetries   int              `yaml:"max_retries,omitempty"` // defaults to 0, no retries
	Backoff      RetryBackoffMode `yaml:"backoff,omitempty"`
	InitialDelay string           `yaml:"initial_delay,omitempty"`
	MaxDelay     string           `yaml:"max_delay,omitempty"`
}

// InitialDelayDuration returns the parsed initial retry delay.
func (r RetryConfig) InitialDelayDuration() time.Duration {
	d, err := time.ParseDuration(r.InitialDelay)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// MaxDelayDuration returns the parsed retry delay ceiling.
func (r RetryConfig) MaxDelayDuration() time.Duration {
	d, err := time.ParseDuration(r.MaxDelay)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, expands, and validates the configuration file at path.
// A missing file at the default path yields Default(); a missing file at an
// explicitly chosen path is an error.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == DefaultConfigPath {
			return Default(), nil
		}
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
			WithContext("path", path).
			Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	// Expand ${VAR} references so credentials can live in the environment
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, errors.ConfigError("configuration validation failed").
			WithCause(err).
			WithContext("path", path).
			Build()
	}

	return &cfg, nil
}

// ResolveRepository returns the upload target by name. Configured targets are
// merged over the built-in pypi/testpypi entries, and WHEELWRIGHT_USERNAME /
// WHEELWRIGHT_PASSWORD override credentials from either source.
func (c *Config) ResolveRepository(name string) (index.Repository, error) {
	if name == "" {
		name = c.Upload.Repository
	}

	repo, ok := index.Builtins()[name]
	if rc, configured := c.Repositories[name]; configured {
		repo = index.Repository{
			Name:     name,
			URL:      rc.URL,
			Username: rc.Username,
			Password: rc.Password,
		}
		ok = true
	}
	if !ok {
		return index.Repository{}, errors.ConfigError(fmt.Sprintf("unknown repository target: %s", name)).
			WithContext("repository", name).
			Build()
	}

	if v := os.Getenv("WHEELWRIGHT_USERNAME"); v != "" {
		repo.Username = v
	}
	if v := os.Getenv("WHEELWRIGHT_PASSWORD"); v != "" {
		repo.Password = v
	}

	return repo, nil
}

// loadEnvFiles loads .env then .env.local without overriding the process
// environment, so exported variables always win over file entries.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", name, err)
		}
	}
}
