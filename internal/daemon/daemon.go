// Package daemon runs wheelwright as a long-lived service: releases are
// processed by a bounded worker queue, triggered by a schedule or the admin
// API, with history persisted to the event store.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/events"
	"github.com/felloworks/wheelwright/internal/eventstore"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/metrics"
	"github.com/felloworks/wheelwright/internal/queue"
	"github.com/felloworks/wheelwright/internal/version"
)

// Status represents the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon is the long-running release service.
type Daemon struct {
	config     *config.Config
	configPath string
	status     atomic.Value // Status
	startTime  time.Time
	stopChan   chan struct{}
	mu         sync.RWMutex

	queue         *queue.ReleaseQueue
	scheduler     *Scheduler
	configWatcher *ConfigWatcher
	httpServer    *HTTPServer

	store      eventstore.Store
	projection *eventstore.ReleaseHistoryProjection
	publisher  *events.Publisher

	registry *prom.Registry
	recorder metrics.Recorder
}

// New assembles a daemon from the configuration. configPath enables config
// file watching when daemon.watch_config is set; pass "" to disable.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.DaemonError("configuration is required").Build()
	}
	if cfg.Daemon == nil {
		return nil, errors.DaemonError("daemon section is required").Build()
	}

	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		stopChan:   make(chan struct{}),
		recorder:   metrics.NoopRecorder{},
	}
	d.status.Store(StatusStopped)

	if cfg.Metrics.Enabled {
		d.registry = prom.NewRegistry()
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	d.store = store
	d.projection = eventstore.NewReleaseHistoryProjection(store, 100)
	if err := d.projection.Rebuild(context.Background()); err != nil {
		// Non-fatal, the projection starts empty
		slog.Warn("Failed to rebuild release history projection", logfields.Error(err))
	}

	// Event publishing is best effort, a missing broker never blocks releases
	if cfg.Events.NATSURL != "" {
		publisher, err := events.NewPublisher(cfg.Events)
		if err != nil {
			slog.Warn("Event publishing disabled", logfields.Error(err))
		} else {
			d.publisher = publisher
		}
	}

	d.queue = queue.New(cfg.Daemon.QueueSize, cfg.Daemon.Workers, pipelineReleaser{d: d})
	d.queue.ConfigureRetry(cfg.Daemon.Retry)
	d.queue.SetRecorder(d.recorder)

	scheduler, err := NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	d.scheduler = scheduler

	d.httpServer = NewHTTPServer(cfg, d)

	if cfg.Daemon.WatchConfig && configPath != "" {
		watcher, err := NewConfigWatcher(configPath, d)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		d.configWatcher = watcher
	}

	return d, nil
}

// Start brings up all components and blocks in the main loop until the
// context is canceled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return errors.DaemonError("daemon is not in stopped state").
			WithContext("status", string(d.GetStatus())).
			Build()
	}

	d.status.Store(StatusStarting)
	d.startTime = time.Now()

	slog.Info("Starting wheelwright daemon", slog.String("version", version.Version))

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return fmt.Errorf("failed to start admin server: %w", err)
	}

	d.queue.Start(ctx)
	d.scheduler.Start(ctx)

	if err := d.scheduleReleases(d.config); err != nil {
		slog.Error("Failed to install release schedule", logfields.Error(err))
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Start(ctx); err != nil {
			slog.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon started",
		slog.String("project", d.config.Project.Path),
		slog.String("repository", d.config.Upload.Repository),
		slog.Int("workers", d.config.Daemon.Workers),
		slog.Int("queue_size", d.config.Daemon.QueueSize))

	// Release the lock before blocking so status queries keep working
	d.mu.Unlock()

	d.mainLoop(ctx)

	// Stop owns the shutdown transitions when it initiated the exit; the
	// swap only fires when the context was canceled from outside.
	d.status.CompareAndSwap(StatusRunning, StatusStopping)
	return nil
}

// Stop gracefully shuts down all components in reverse start order.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// StatusStopping still proceeds: a canceled context leaves the daemon
	// in that state with its components still up.
	if d.GetStatus() == StatusStopped {
		return nil
	}

	d.status.Store(StatusStopping)
	slog.Info("Stopping wheelwright daemon")

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(ctx); err != nil {
			slog.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}

	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			slog.Error("Failed to stop scheduler", logfields.Error(err))
		}
	}

	if d.queue != nil {
		d.queue.Stop(ctx)
	}

	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			slog.Error("Failed to stop admin server", logfields.Error(err))
		}
	}

	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			slog.Error("Failed to close event publisher", logfields.Error(err))
		}
	}

	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Error("Failed to close history store", logfields.Error(err))
		}
	}

	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

// mainLoop blocks until the daemon is told to stop.
func (d *Daemon) mainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("Main loop stopped by context cancellation")
			return
		case <-d.stopChan:
			slog.Info("Main loop stopped by stop signal")
			return
		}
	}
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetStartTime returns when the daemon was started.
func (d *Daemon) GetStartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// GetQueueLength returns the number of queued release jobs.
func (d *Daemon) GetQueueLength() int {
	return d.queue.Length()
}

// GetActiveJobs returns snapshots of the jobs currently being processed.
func (d *Daemon) GetActiveJobs() []*queue.ReleaseJob {
	return d.queue.GetActiveJobs()
}

// Projection returns the release history read model.
func (d *Daemon) Projection() *eventstore.ReleaseHistoryProjection {
	return d.projection
}

// TriggerRelease enqueues a release outside the schedule. repository
// overrides the configured upload target when non-empty.
func (d *Daemon) TriggerRelease(relType queue.ReleaseType, repository string) (string, error) {
	if d.GetStatus() != StatusRunning {
		return "", errors.DaemonError("daemon is not running").
			WithContext("status", string(d.GetStatus())).
			Build()
	}

	job := &queue.ReleaseJob{
		ID:         fmt.Sprintf("%s-%d", relType, time.Now().UnixNano()),
		Type:       relType,
		Priority:   queue.PriorityHigh,
		Repository: repository,
		CreatedAt:  time.Now(),
	}

	if err := d.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// scheduleReleases installs the configured schedule. A cron expression wins
// over a fixed interval when both are set.
func (d *Daemon) scheduleReleases(cfg *config.Config) error {
	switch {
	case cfg.Daemon.Schedule != "":
		if _, err := d.scheduler.ScheduleCron("scheduled-release", cfg.Daemon.Schedule, d.enqueueScheduledRelease); err != nil {
			return err
		}
		slog.Info("Release schedule installed", slog.String("cron", cfg.Daemon.Schedule))
	case cfg.Daemon.IntervalDuration() > 0:
		interval := cfg.Daemon.IntervalDuration()
		if _, err := d.scheduler.ScheduleEvery("interval-release", interval, d.enqueueScheduledRelease); err != nil {
			return err
		}
		slog.Info("Release schedule installed", slog.Duration("interval", interval))
	default:
		slog.Info("No release schedule configured, releases run on demand")
	}
	return nil
}

// enqueueScheduledRelease is the task body for scheduled triggers. A full
// queue drops the tick rather than piling up jobs behind a slow release.
func (d *Daemon) enqueueScheduledRelease() {
	if d.GetStatus() != StatusRunning {
		return
	}

	job := &queue.ReleaseJob{
		ID:        fmt.Sprintf("scheduled-%d", time.Now().UnixNano()),
		Type:      queue.ReleaseTypeScheduled,
		Priority:  queue.PriorityNormal,
		CreatedAt: time.Now(),
	}

	if err := d.queue.Enqueue(job); err != nil {
		slog.Warn("Failed to enqueue scheduled release", logfields.JobID(job.ID), logfields.Error(err))
	}
}

// ReloadConfig applies a new configuration to a running daemon. The retry
// policy and the schedule take effect immediately; a changed listen address
// requires a restart.
func (d *Daemon) ReloadConfig(_ context.Context, newConfig *config.Config) error {
	d.mu.Lock()
	d.config = newConfig
	d.mu.Unlock()

	d.queue.ConfigureRetry(newConfig.Daemon.Retry)

	d.scheduler.Clear()
	if err := d.scheduleReleases(newConfig); err != nil {
		return fmt.Errorf("failed to reinstall release schedule: %w", err)
	}

	return nil
}
