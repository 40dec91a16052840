// Package eventstore provides event sourcing primitives for release tracking.
package eventstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	releaseStatusRunning   = "running"
	releaseStatusCompleted = "completed"
)

// ReleaseSummary is a read model summarizing a completed or in-progress release.
type ReleaseSummary struct {
	ReleaseID     string        `json:"release_id"`
	Project       string        `json:"project,omitempty"`
	Version       string        `json:"version,omitempty"`
	Repository    string        `json:"repository,omitempty"`
	Trigger       string        `json:"trigger,omitempty"`
	Status        string        `json:"status"` // "running", "completed", "failed"
	Outcome       string        `json:"outcome,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Artifacts     int           `json:"artifacts"`
	Uploaded      int           `json:"uploaded"`
	Skipped       int           `json:"skipped"`
	Warnings      int           `json:"warnings"`
	ErrorStage    string        `json:"error_stage,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	ReportPath    string        `json:"report_path,omitempty"`
	// ReportData contains detailed release report metrics (populated from ReleaseReportGenerated event)
	ReportData *ReleaseReportData `json:"report_data,omitempty"`
}

// ReleaseHistoryProjection maintains an in-memory view of release history,
// reconstructed from events stored in the event store.
type ReleaseHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	releases map[string]*ReleaseSummary // releaseID -> summary
	history  []*ReleaseSummary          // ordered by start time, newest first
	maxSize  int
	lastSync time.Time
}

// NewReleaseHistoryProjection creates a new projection backed by the given store.
func NewReleaseHistoryProjection(store Store, maxHistorySize int) *ReleaseHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &ReleaseHistoryProjection{
		store:    store,
		releases: make(map[string]*ReleaseSummary),
		history:  make([]*ReleaseSummary, 0, maxHistorySize),
		maxSize:  maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
// This is typically called at startup.
func (p *ReleaseHistoryProjection) Rebuild(ctx context.Context) error {
	// Get all events from the beginning of time
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Reset state
	p.releases = make(map[string]*ReleaseSummary)
	p.history = make([]*ReleaseSummary, 0, p.maxSize)

	// Apply each event
	for _, event := range events {
		p.applyEventLocked(event)
	}

	// Sort history by start time (newest first)
	p.sortHistoryLocked()

	// Trim to max size
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any running releases.
	p.pruneReleasesLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
// This is used for real-time updates when events are emitted.
func (p *ReleaseHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *ReleaseHistoryProjection) applyEventLocked(event Event) {
	releaseID := event.ReleaseID()
	if releaseID == "" {
		return
	}

	summary, exists := p.releases[releaseID]
	if !exists {
		summary = &ReleaseSummary{
			ReleaseID: releaseID,
			Status:    releaseStatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.releases[releaseID] = summary
	}

	// Update summary based on event type
	switch event.Type() {
	case TypeReleaseStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = releaseStatusRunning
		var payload struct {
			Project    string `json:"project"`
			Version    string `json:"version"`
			Repository string `json:"repository"`
			Trigger    string `json:"trigger"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Project = payload.Project
			summary.Version = payload.Version
			summary.Repository = payload.Repository
			summary.Trigger = payload.Trigger
		}

	case TypeArtifactBuilt:
		summary.Artifacts++

	case TypeUploadCompleted:
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Status == "uploaded" {
			summary.Uploaded++
		}

	case TypeUploadSkipped:
		summary.Skipped++

	case TypeReleaseCompleted:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = releaseStatusCompleted
		var result ReleaseCompletedMeta
		if err := json.Unmarshal(event.Payload(), &result); err == nil {
			summary.Outcome = result.Outcome
			summary.Warnings = result.Warnings
			// The final counters win over the incremental ones; upload-only
			// runs learn project and version here.
			summary.Uploaded = result.Uploaded
			summary.Skipped = result.Skipped
			if result.Project != "" {
				summary.Project = result.Project
			}
			if result.Version != "" {
				summary.Version = result.Version
			}
			if result.Repository != "" {
				summary.Repository = result.Repository
			}
			if result.DurationMS > 0 {
				summary.Duration = time.Duration(result.DurationMS) * time.Millisecond
			}
		}
		// Add to history if not already there
		p.addToHistoryLocked(summary)

	case TypeReleaseFailed:
		now := event.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = "failed"
		var failure ReleaseFailedMeta
		if err := json.Unmarshal(event.Payload(), &failure); err == nil {
			summary.Outcome = failure.Outcome
			summary.ErrorStage = failure.Stage
			summary.ErrorMessage = failure.Error
			summary.ErrorCategory = failure.Category
			if failure.Project != "" {
				summary.Project = failure.Project
			}
			if failure.Version != "" {
				summary.Version = failure.Version
			}
		}
		// Add to history if not already there
		p.addToHistoryLocked(summary)

	case TypeReleaseReportGenerated:
		var report ReleaseReportData
		if err := json.Unmarshal(event.Payload(), &report); err == nil {
			summary.ReportData = &report
			summary.ReportPath = report.Path
		}
	}
}

// addToHistoryLocked adds a finished release to history if not already present.
func (p *ReleaseHistoryProjection) addToHistoryLocked(summary *ReleaseSummary) {
	for _, h := range p.history {
		if h.ReleaseID == summary.ReleaseID {
			return
		}
	}

	p.history = append([]*ReleaseSummary{summary}, p.history...)

	// Trim to max size
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}

	// Prevent unbounded growth: keep only bounded history + any running releases.
	p.pruneReleasesLocked()
}

// pruneReleasesLocked removes finished releases not present in the bounded history.
// It keeps any releases that are still marked as running.
// Caller must hold p.mu (write lock).
func (p *ReleaseHistoryProjection) pruneReleasesLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		if h != nil {
			keep[h.ReleaseID] = struct{}{}
		}
	}

	for id, summary := range p.releases {
		if summary != nil && summary.Status == releaseStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.releases, id)
		}
	}
}

// sortHistoryLocked sorts history by start time, newest first.
func (p *ReleaseHistoryProjection) sortHistoryLocked() {
	// Simple insertion sort (history is usually small)
	for i := 1; i < len(p.history); i++ {
		for j := i; j > 0 && p.history[j].StartedAt.After(p.history[j-1].StartedAt); j-- {
			p.history[j], p.history[j-1] = p.history[j-1], p.history[j]
		}
	}
}

// GetHistory returns the release history, newest first.
func (p *ReleaseHistoryProjection) GetHistory() []*ReleaseSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*ReleaseSummary, len(p.history))
	copy(result, p.history)
	return result
}

// GetRelease returns the summary for a specific release.
func (p *ReleaseHistoryProjection) GetRelease(releaseID string) (*ReleaseSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.releases[releaseID]
	if !exists {
		return nil, false
	}

	// Return a copy
	cp := *summary
	return &cp, true
}

// GetActiveRelease returns a currently running release if any.
func (p *ReleaseHistoryProjection) GetActiveRelease() *ReleaseSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.releases {
		if summary.Status == releaseStatusRunning {
			cp := *summary
			return &cp
		}
	}
	return nil
}

// GetLastCompletedRelease returns the most recently finished release
// (success or failure).
func (p *ReleaseHistoryProjection) GetLastCompletedRelease() *ReleaseSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return nil
	}

	// History is sorted newest first
	cp := *p.history[0]
	return &cp
}

// LastSyncTime returns when the projection was last synchronized.
func (p *ReleaseHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
