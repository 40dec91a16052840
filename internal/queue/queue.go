// Package queue implements the daemon's bounded release job queue.
package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/metrics"
	"github.com/felloworks/wheelwright/internal/pipeline"
	"github.com/felloworks/wheelwright/internal/retry"
)

// ReleaseType represents how a release job was triggered.
type ReleaseType string

const (
	ReleaseTypeManual    ReleaseType = "manual"    // Triggered from the CLI or admin API
	ReleaseTypeScheduled ReleaseType = "scheduled" // Cron or interval trigger
	ReleaseTypeAPI       ReleaseType = "api"       // External automation via HTTP
)

// ReleasePriority represents the priority of a release job.
type ReleasePriority int

const (
	PriorityLow    ReleasePriority = 1
	PriorityNormal ReleasePriority = 2
	PriorityHigh   ReleasePriority = 3
	PriorityUrgent ReleasePriority = 4
)

// ReleaseStatus represents the current status of a release job.
type ReleaseStatus string

const (
	ReleaseStatusQueued    ReleaseStatus = "queued"
	ReleaseStatusRunning   ReleaseStatus = "running"
	ReleaseStatusCompleted ReleaseStatus = "completed"
	ReleaseStatusFailed    ReleaseStatus = "failed"
	ReleaseStatusCanceled  ReleaseStatus = "canceled"
)

// ReleaseJob represents a single release job in the queue.
type ReleaseJob struct {
	ID          string          `json:"id"`
	Type        ReleaseType     `json:"type"`
	Priority    ReleasePriority `json:"priority"`
	Status      ReleaseStatus   `json:"status"`
	Repository  string          `json:"repository,omitempty"` // Overrides the configured target when set
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration,omitempty"`
	Error       string          `json:"error,omitempty"`

	// Report from the most recent attempt (populated during processing).
	Report *pipeline.Report `json:"report,omitempty"`

	// Internal processing
	cancel context.CancelFunc `json:"-"`
}

// Releaser executes a release job and returns the run report.
type Releaser interface {
	Release(ctx context.Context, job *ReleaseJob) (*pipeline.Report, error)
}

// ReleaseQueue manages the queue of release jobs.
type ReleaseQueue struct {
	jobs        chan *ReleaseJob
	workers     int
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*ReleaseJob
	history     []*ReleaseJob
	historySize int
	stopChan    chan struct{}
	wg          sync.WaitGroup
	releaser    Releaser

	retryPolicy retry.Policy
	recorder    metrics.Recorder
}

// New creates a release queue with the specified size, worker count, and
// releaser. Workers default to one: concurrent releases of the same project
// contend on the distribution directory.
func New(maxSize, workers int, releaser Releaser) *ReleaseQueue {
	if maxSize <= 0 {
		maxSize = 16
	}
	if workers <= 0 {
		workers = 1
	}
	if releaser == nil {
		panic("queue.New: releaser is required")
	}

	return &ReleaseQueue{
		jobs:        make(chan *ReleaseJob, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		active:      make(map[string]*ReleaseJob),
		history:     make([]*ReleaseJob, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		releaser:    releaser,
		retryPolicy: retry.DefaultPolicy(),
		recorder:    metrics.NoopRecorder{},
	}
}

// ConfigureRetry updates the retry policy (should be called once after config load).
func (rq *ReleaseQueue) ConfigureRetry(cfg config.RetryConfig) {
	rq.retryPolicy = retry.FromConfig(cfg)
}

// SetRecorder injects a metrics recorder for queue and retry metrics (optional).
func (rq *ReleaseQueue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	rq.recorder = r
}

// Start begins processing jobs with the configured number of workers.
func (rq *ReleaseQueue) Start(ctx context.Context) {
	slog.Info("Starting release queue", "workers", rq.workers, "max_size", rq.maxSize)
	for i := range rq.workers {
		rq.wg.Add(1)
		go rq.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop gracefully shuts down the release queue.
func (rq *ReleaseQueue) Stop(_ context.Context) {
	close(rq.stopChan)

	// Cancel all active jobs
	rq.mu.Lock()
	for _, job := range rq.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	rq.mu.Unlock()

	rq.wg.Wait()
}

// Length returns the current queue length.
func (rq *ReleaseQueue) Length() int {
	return len(rq.jobs)
}

// GetActiveJobs returns a copy of the currently active jobs.
func (rq *ReleaseQueue) GetActiveJobs() []*ReleaseJob {
	rq.mu.RLock()
	defer rq.mu.RUnlock()

	active := make([]*ReleaseJob, 0, len(rq.active))
	for _, job := range rq.active {
		active = append(active, job)
	}
	return active
}

// Enqueue adds a new release job to the queue.
func (rq *ReleaseQueue) Enqueue(job *ReleaseJob) error {
	if job == nil {
		return stderrors.New("job cannot be nil")
	}
	if job.ID == "" {
		return stderrors.New("job ID is required")
	}

	job.Status = ReleaseStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case rq.jobs <- job:
		rq.recorder.SetQueueDepth(len(rq.jobs))
		return nil
	default:
		return stderrors.New("release queue is full")
	}
}

// JobSnapshot returns a copy of a job (active first, then history).
func (rq *ReleaseQueue) JobSnapshot(id string) (*ReleaseJob, bool) {
	rq.mu.RLock()
	defer rq.mu.RUnlock()

	if j, ok := rq.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range rq.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

func (rq *ReleaseQueue) worker(ctx context.Context, workerID string) {
	defer rq.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rq.stopChan:
			return
		case job := <-rq.jobs:
			if job != nil {
				rq.processJob(ctx, job, workerID)
			}
		}
	}
}

func (rq *ReleaseQueue) processJob(ctx context.Context, job *ReleaseJob, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	job.cancel = cancel
	defer cancel()

	rq.recorder.SetQueueDepth(len(rq.jobs))

	startTime := time.Now()
	rq.mu.Lock()
	job.StartedAt = &startTime
	job.Status = ReleaseStatusRunning
	rq.active[job.ID] = job
	rq.mu.Unlock()

	slog.Debug("Release job picked up",
		logfields.JobID(job.ID), logfields.JobType(string(job.Type)), "worker", workerID)

	err := rq.executeRelease(jobCtx, job)

	duration := rq.markJobCompleted(job, err)
	if err != nil {
		slog.Warn("Release job finished with error",
			logfields.JobID(job.ID), logfields.JobStatus(string(job.Status)), logfields.Error(err))
	} else {
		slog.Info("Release job finished",
			logfields.JobID(job.ID), logfields.JobStatus(string(job.Status)), "duration", duration)
	}
}

func (rq *ReleaseQueue) markJobCompleted(job *ReleaseJob, err error) time.Duration {
	endTime := time.Now()
	rq.mu.Lock()
	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	switch {
	case err == nil:
		job.Status = ReleaseStatusCompleted
	case stderrors.Is(err, context.Canceled) || (job.Report != nil && job.Report.Outcome == pipeline.OutcomeCanceled):
		job.Status = ReleaseStatusCanceled
		job.Error = err.Error()
	default:
		job.Status = ReleaseStatusFailed
		job.Error = err.Error()
	}
	delete(rq.active, job.ID)
	rq.addToHistory(job)
	duration := job.Duration
	rq.mu.Unlock()

	return duration
}

func (rq *ReleaseQueue) addToHistory(job *ReleaseJob) {
	rq.history = append(rq.history, job)
	if len(rq.history) > rq.historySize {
		copy(rq.history, rq.history[len(rq.history)-rq.historySize:])
		rq.history = rq.history[:rq.historySize]
	}
}

func (rq *ReleaseQueue) executeRelease(ctx context.Context, job *ReleaseJob) error {
	policy := rq.retryPolicy
	if policy.Initial <= 0 {
		policy = retry.DefaultPolicy()
	}

	attempts := 0
	totalRetries := 0

	for {
		attempts++
		report, err := rq.releaser.Release(ctx, job)
		if report != nil {
			rq.mu.Lock()
			job.Report = report
			rq.mu.Unlock()
		}
		if err == nil {
			if report != nil && totalRetries > 0 {
				report.Retries = totalRetries
			}
			return nil
		}

		transient, transientStage := findTransientError(report)
		if shouldStopRetrying(transient, totalRetries, policy.MaxRetries) {
			handleRetriesExhausted(report, transient, totalRetries)
			return err
		}

		totalRetries++
		rq.recorder.IncReleaseRetry()
		delay := policy.Delay(totalRetries)
		slog.Warn("Transient release error, retrying",
			logfields.JobID(job.ID),
			"attempt", attempts,
			"retry", totalRetries,
			"max_retries", policy.MaxRetries,
			logfields.Stage(transientStage),
			"delay", delay,
			logfields.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func shouldStopRetrying(transient bool, totalRetries, maxRetries int) bool {
	return !transient || totalRetries >= maxRetries
}

func handleRetriesExhausted(report *pipeline.Report, transient bool, totalRetries int) {
	if !transient || totalRetries < 1 {
		return
	}

	if report != nil {
		report.Retries = totalRetries
		report.RetriesExhausted = true
	}
}

// findTransientError reports whether the failed run carries a network-category
// error worth retrying, and the stage it came from. Build and validation
// failures are deterministic and never retried.
func findTransientError(report *pipeline.Report) (bool, string) {
	if report == nil || len(report.Errors) == 0 {
		return false, ""
	}

	for _, e := range report.Errors {
		if errors.GetCategory(e) != errors.CategoryNetwork {
			continue
		}
		var se *pipeline.StageError
		if stderrors.As(e, &se) {
			return true, string(se.Stage)
		}
		return true, ""
	}
	return false, ""
}
