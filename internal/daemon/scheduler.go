package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// Scheduler wraps a gocron scheduler for periodic release triggers. Tasks are
// plain closures so the scheduler stays independent of queue types.
type Scheduler struct {
	scheduler gocron.Scheduler
	mu        sync.Mutex
	jobIDs    []uuid.UUID
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCron registers a task on a cron expression.
// Returns the job ID for later management.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create cron job %q: %w", expr, err)
	}

	s.track(job.ID())
	return job.ID().String(), nil
}

// ScheduleEvery registers a task on a fixed interval.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, task func()) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("interval must be positive, got %s", interval)
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create interval job: %w", err)
	}

	s.track(job.ID())
	return job.ID().String(), nil
}

// Clear removes every job this scheduler registered. Used on config reload
// before the schedule is re-applied.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	ids := s.jobIDs
	s.jobIDs = nil
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.scheduler.RemoveJob(id); err != nil {
			slog.Warn("Failed to remove scheduled job", "job_id", id.String(), "error", err)
		}
	}
}

func (s *Scheduler) track(id uuid.UUID) {
	s.mu.Lock()
	s.jobIDs = append(s.jobIDs, id)
	s.mu.Unlock()
}
