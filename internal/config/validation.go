package config

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/felloworks/wheelwright/internal/buildtool"
	"github.com/felloworks/wheelwright/internal/index"
)

// validate checks the configuration after defaults have been applied.
func validate(cfg *Config) error {
	v := &configValidator{config: cfg}
	return v.validate()
}

// configValidator coordinates validation across the configuration sections.
type configValidator struct {
	config *Config
}

func (v *configValidator) validate() error {
	if err := v.validateBuild(); err != nil {
		return err
	}
	if err := v.validateUpload(); err != nil {
		return err
	}
	if err := v.validateRepositories(); err != nil {
		return err
	}
	if err := v.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (v *configValidator) validateBuild() error {
	if !buildtool.ToolMode(v.config.Build.Tool).Valid() {
		return fmt.Errorf("build.tool must be auto, build, or setup, got %q", v.config.Build.Tool)
	}
	if !filepath.IsLocal(v.config.Build.DistDir) {
		return fmt.Errorf("build.dist_dir must stay inside the project: %q", v.config.Build.DistDir)
	}
	return nil
}

func (v *configValidator) validateUpload() error {
	d, err := time.ParseDuration(v.config.Upload.Timeout)
	if err != nil {
		return fmt.Errorf("upload.timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("upload.timeout must be positive, got %s", v.config.Upload.Timeout)
	}

	// The selected target must exist among built-ins and configured entries
	// so a typo fails at load time, not after a successful build.
	name := v.config.Upload.Repository
	if _, builtin := index.Builtins()[name]; !builtin {
		if _, configured := v.config.Repositories[name]; !configured {
			return fmt.Errorf("upload.repository %q is not a known target", name)
		}
	}
	return nil
}

func (v *configValidator) validateRepositories() error {
	for name, repo := range v.config.Repositories {
		if name == "" {
			return stderrors.New("repositories: target name cannot be empty")
		}
		if repo.URL == "" {
			return fmt.Errorf("repositories.%s: url is required", name)
		}
		u, err := url.Parse(repo.URL)
		if err != nil {
			return fmt.Errorf("repositories.%s: invalid url: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("repositories.%s: url must be http or https, got %q", name, repo.URL)
		}
	}
	return nil
}

func (v *configValidator) validateDaemon() error {
	d := v.config.Daemon
	if d == nil {
		return nil
	}

	if d.Schedule != "" && d.Interval != "" {
		return stderrors.New("daemon: schedule and interval are mutually exclusive")
	}
	if d.Interval != "" {
		dur, err := time.ParseDuration(d.Interval)
		if err != nil {
			return fmt.Errorf("daemon.interval: %w", err)
		}
		if dur < time.Second {
			return fmt.Errorf("daemon.interval must be at least 1s, got %s", d.Interval)
		}
	}
	if d.QueueSize < 1 {
		return fmt.Errorf("daemon.queue_size must be at least 1, got %d", d.QueueSize)
	}
	if d.Workers < 1 {
		return fmt.Errorf("daemon.workers must be at least 1, got %d", d.Workers)
	}

	return v.validateRetry(&d.Retry)
}

func (v *configValidator) validateRetry(r *RetryConfig) error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("daemon.retry.max_retries cannot be negative, got %d", r.MaxRetries)
	}
	norm := NormalizeRetryBackoff(string(r.Backoff))
	if norm == "" {
		return fmt.Errorf("daemon.retry.backoff must be fixed, linear, or exponential, got %q", r.Backoff)
	}
	r.Backoff = norm

	initial, err := time.ParseDuration(r.InitialDelay)
	if err != nil {
		return fmt.Errorf("daemon.retry.initial_delay: %w", err)
	}
	maxDelay, err := time.ParseDuration(r.MaxDelay)
	if err != nil {
		return fmt.Errorf("daemon.retry.max_delay: %w", err)
	}
	if initial <= 0 || maxDelay <= 0 {
		return stderrors.New("daemon.retry delays must be positive")
	}
	if initial > maxDelay {
		return fmt.Errorf("daemon.retry.initial_delay %s exceeds max_delay %s", r.InitialDelay, r.MaxDelay)
	}
	return nil
}
