package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	wwerrors "github.com/felloworks/wheelwright/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wheelwright-test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
project:
  path: ./pkg
  python: python3.12
build:
  tool: setup
  dist_dir: out
  python_path: ./src
  hooks:
    before:
      - ./scripts/gen_version.sh
    after:
      - echo done
check:
  enabled: false
  strict: true
upload:
  repository: internal
  skip_existing: true
  timeout: 90s
repositories:
  internal:
    url: https://pypi.internal.example.com/legacy/
    username: deploy
    password: hunter2
git:
  require_clean: true
  annotate: false
history:
  path: /var/lib/wheelwright/history.db
events:
  nats_url: nats://localhost:4222
  subject_prefix: releases.python
metrics:
  enabled: true
daemon:
  listen: :9000
  interval: 4h
  queue_size: 50
  workers: 2
  watch_config: true
  retry:
    max_retries: 3
    backoff: linear
    initial_delay: 2s
    max_delay: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Project.Path != "./pkg" || cfg.Project.Python != "python3.12" {
		t.Errorf("project = %+v", cfg.Project)
	}
	if cfg.Build.Tool != "setup" || cfg.Build.DistDir != "out" || cfg.Build.PythonPath != "./src" {
		t.Errorf("build = %+v", cfg.Build)
	}
	if len(cfg.Build.Hooks.Before) != 1 || len(cfg.Build.Hooks.After) != 1 {
		t.Errorf("hooks = %+v", cfg.Build.Hooks)
	}
	if cfg.Check.IsEnabled() {
		t.Error("check.enabled = true, want false")
	}
	if !cfg.Check.Strict {
		t.Error("check.strict = false, want true")
	}
	if cfg.Upload.Repository != "internal" || !cfg.Upload.SkipExisting {
		t.Errorf("upload = %+v", cfg.Upload)
	}
	if got := cfg.Upload.TimeoutDuration(); got != 90*time.Second {
		t.Errorf("upload timeout = %v, want 90s", got)
	}
	if cfg.Git.ShouldAnnotate() {
		t.Error("git.annotate = true, want false")
	}
	if !cfg.Git.RequireClean {
		t.Error("git.require_clean = false, want true")
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" || cfg.Events.SubjectPrefix != "releases.python" {
		t.Errorf("events = %+v", cfg.Events)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled = false, want true")
	}

	d := cfg.Daemon
	if d == nil {
		t.Fatal("daemon section missing")
	}
	if d.Listen != ":9000" || d.QueueSize != 50 || d.Workers != 2 || !d.WatchConfig {
		t.Errorf("daemon = %+v", d)
	}
	if got := d.IntervalDuration(); got != 4*time.Hour {
		t.Errorf("daemon interval = %v, want 4h", got)
	}
	if d.Retry.MaxRetries != 3 || d.Retry.Backoff != RetryBackoffLinear {
		t.Errorf("retry = %+v", d.Retry)
	}
	if d.Retry.InitialDelayDuration() != 2*time.Second || d.Retry.MaxDelayDuration() != time.Minute {
		t.Errorf("retry delays = %+v", d.Retry)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "check:\n  strict: false\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Project.Path != "." || cfg.Project.Python != "python3" {
		t.Errorf("project defaults = %+v", cfg.Project)
	}
	if cfg.Build.Tool != "auto" || cfg.Build.DistDir != "dist" {
		t.Errorf("build defaults = %+v", cfg.Build)
	}
	if !cfg.Check.IsEnabled() {
		t.Error("check should default to enabled")
	}
	if cfg.Upload.Repository != "pypi" || cfg.Upload.TimeoutDuration() != 5*time.Minute {
		t.Errorf("upload defaults = %+v", cfg.Upload)
	}
	if !cfg.Git.ShouldAnnotate() {
		t.Error("git.annotate should default to true")
	}
	if cfg.History.Path != ".wheelwright/history.db" {
		t.Errorf("history default = %q", cfg.History.Path)
	}
	if cfg.Events.SubjectPrefix != "wheelwright.releases" {
		t.Errorf("subject prefix default = %q", cfg.Events.SubjectPrefix)
	}
	if cfg.Daemon != nil {
		t.Error("daemon should stay nil when not configured")
	}
}

func TestLoad_DaemonDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "daemon:\n  schedule: \"0 */4 * * *\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	d := cfg.Daemon
	if d == nil {
		t.Fatal("daemon section missing")
	}
	if d.Listen != ":8080" || d.QueueSize != 16 || d.Workers != 1 {
		t.Errorf("daemon defaults = %+v", d)
	}
	if d.Retry.MaxRetries != 0 {
		t.Errorf("retry should default to 0 attempts, got %d", d.Retry.MaxRetries)
	}
	if d.Retry.Backoff != RetryBackoffExponential {
		t.Errorf("retry backoff default = %q", d.Retry.Backoff)
	}
}

func TestLoad_MissingDefaultPathYieldsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(DefaultConfigPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for absent default config", err)
	}
	if cfg.Upload.Repository != "pypi" || cfg.Build.DistDir != "dist" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_MissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing explicit config")
	}
	classified, ok := wwerrors.AsClassified(err)
	if !ok || classified.Category() != wwerrors.CategoryConfig {
		t.Errorf("error = %v, want config category", err)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("WW_TEST_PASSWORD", "s3cret")
	cfg, err := Load(writeConfig(t, `
repositories:
  internal:
    url: https://pypi.internal.example.com/legacy/
    username: deploy
    password: ${WW_TEST_PASSWORD}
upload:
  repository: internal
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Repositories["internal"].Password; got != "s3cret" {
		t.Errorf("password = %q, want expanded env value", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "build: [not a mapping"))
	if err == nil {
		t.Fatal("Load() expected parse error")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("error = %v, want parse failure", err)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown build tool",
			content: "build:\n  tool: hammer\n",
			want:    "build.tool",
		},
		{
			name:    "escaping dist dir",
			content: "build:\n  dist_dir: ../out\n",
			want:    "dist_dir",
		},
		{
			name:    "unknown upload target",
			content: "upload:\n  repository: nowhere\n",
			want:    "not a known target",
		},
		{
			name:    "bad upload timeout",
			content: "upload:\n  timeout: fast\n",
			want:    "upload.timeout",
		},
		{
			name:    "repository without url",
			content: "repositories:\n  internal: {}\n",
			want:    "url is required",
		},
		{
			name:    "repository with ftp url",
			content: "repositories:\n  internal:\n    url: ftp://host/legacy/\n",
			want:    "http or https",
		},
		{
			name:    "schedule and interval together",
			content: "daemon:\n  schedule: \"0 * * * *\"\n  interval: 1h\n",
			want:    "mutually exclusive",
		},
		{
			name:    "interval below floor",
			content: "daemon:\n  interval: 100ms\n",
			want:    "at least 1s",
		},
		{
			name:    "negative retries",
			content: "daemon:\n  retry:\n    max_retries: -1\n",
			want:    "max_retries",
		},
		{
			name:    "unknown backoff",
			content: "daemon:\n  retry:\n    backoff: random\n",
			want:    "backoff",
		},
		{
			name:    "initial delay above max",
			content: "daemon:\n  retry:\n    initial_delay: 2m\n    max_delay: 10s\n",
			want:    "exceeds max_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestNormalizeRetryBackoff(t *testing.T) {
	tests := []struct {
		in   string
		want RetryBackoffMode
	}{
		{"fixed", RetryBackoffFixed},
		{"LINEAR", RetryBackoffLinear},
		{" Exponential ", RetryBackoffExponential},
		{"random", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeRetryBackoff(tt.in); got != tt.want {
			t.Errorf("NormalizeRetryBackoff(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
