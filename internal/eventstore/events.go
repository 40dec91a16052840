package eventstore

import (
	"encoding/json"
	"time"

	"github.com/felloworks/wheelwright/internal/errors"
)

// Event type names as stored in the event log. The release history
// projection and the NATS publisher both dispatch on these.
const (
	TypeReleaseStarted         = "ReleaseStarted"
	TypeArtifactBuilt          = "ArtifactBuilt"
	TypeUploadCompleted        = "UploadCompleted"
	TypeUploadSkipped          = "UploadSkipped"
	TypeReleaseCompleted       = "ReleaseCompleted"
	TypeReleaseFailed          = "ReleaseFailed"
	TypeReleaseReportGenerated = "ReleaseReportGenerated"
)

// ReleaseStarted is emitted when a release run begins. Project and version
// may be empty at this point; upload-only runs learn them from the
// distributions later in the run.
type ReleaseStarted struct {
	BaseEvent
	Project    string `json:"project"`
	Version    string `json:"version"`
	Repository string `json:"repository"`
	Trigger    string `json:"trigger"`
}

// NewReleaseStarted creates a ReleaseStarted event.
func NewReleaseStarted(releaseID, project, version, repository, trigger string) (*ReleaseStarted, error) {
	payload, err := json.Marshal(map[string]any{
		"project":    project,
		"version":    version,
		"repository": repository,
		"trigger":    trigger,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ReleaseStarted payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			Build()
	}

	return &ReleaseStarted{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeReleaseStarted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Project:    project,
		Version:    version,
		Repository: repository,
		Trigger:    trigger,
	}, nil
}

// ArtifactBuilt is emitted for each distribution collected from the dist
// directory.
type ArtifactBuilt struct {
	BaseEvent
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// NewArtifactBuilt creates an ArtifactBuilt event.
func NewArtifactBuilt(releaseID, name, kind string, size int64, sha256 string) (*ArtifactBuilt, error) {
	payload, err := json.Marshal(map[string]any{
		"name":   name,
		"kind":   kind,
		"size":   size,
		"sha256": sha256,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ArtifactBuilt payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			WithContext("artifact", name).
			Build()
	}

	return &ArtifactBuilt{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeArtifactBuilt,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Name:   name,
		Kind:   kind,
		Size:   size,
		SHA256: sha256,
	}, nil
}

// UploadCompleted is emitted when an upload attempt finishes. Status is
// "uploaded" on success and "failed" when the index rejected the file.
type UploadCompleted struct {
	BaseEvent
	Artifact   string        `json:"artifact"`
	Repository string        `json:"repository"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration_ms"`
}

// NewUploadCompleted creates an UploadCompleted event.
func NewUploadCompleted(releaseID, artifactName, repository, status string, duration time.Duration) (*UploadCompleted, error) {
	payload, err := json.Marshal(map[string]any{
		"artifact":    artifactName,
		"repository":  repository,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal UploadCompleted payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			WithContext("artifact", artifactName).
			Build()
	}

	return &UploadCompleted{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeUploadCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Artifact:   artifactName,
		Repository: repository,
		Status:     status,
		Duration:   duration,
	}, nil
}

// UploadSkipped is emitted when an upload is skipped because the index
// already has the file.
type UploadSkipped struct {
	BaseEvent
	Artifact   string `json:"artifact"`
	Repository string `json:"repository"`
	Reason     string `json:"reason"`
}

// NewUploadSkipped creates an UploadSkipped event.
func NewUploadSkipped(releaseID, artifactName, repository, reason string) (*UploadSkipped, error) {
	payload, err := json.Marshal(map[string]any{
		"artifact":   artifactName,
		"repository": repository,
		"reason":     reason,
	})
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal UploadSkipped payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			WithContext("artifact", artifactName).
			Build()
	}

	return &UploadSkipped{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeUploadSkipped,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Artifact:   artifactName,
		Repository: repository,
		Reason:     reason,
	}, nil
}

// ReleaseCompletedMeta contains the final counters for a release that
// finished without a fatal error.
type ReleaseCompletedMeta struct {
	Project    string `json:"project"`
	Version    string `json:"version"`
	Repository string `json:"repository,omitempty"`
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
	Uploaded   int    `json:"uploaded"`
	Skipped    int    `json:"skipped"`
	Warnings   int    `json:"warnings"`
}

// ReleaseCompleted is emitted when a release finishes with outcome success
// or warning.
type ReleaseCompleted struct {
	BaseEvent
	Result ReleaseCompletedMeta `json:"result"`
}

// NewReleaseCompleted creates a ReleaseCompleted event.
func NewReleaseCompleted(releaseID string, result ReleaseCompletedMeta) (*ReleaseCompleted, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ReleaseCompleted payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			Build()
	}

	return &ReleaseCompleted{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeReleaseCompleted,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Result: result,
	}, nil
}

// ReleaseFailedMeta describes the failure recorded for an aborted release.
type ReleaseFailedMeta struct {
	Project  string `json:"project,omitempty"`
	Version  string `json:"version,omitempty"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	Outcome  string `json:"outcome"`
}

// ReleaseFailed is emitted when a release ends with outcome failed or
// canceled.
type ReleaseFailed struct {
	BaseEvent
	Failure ReleaseFailedMeta `json:"failure"`
}

// NewReleaseFailed creates a ReleaseFailed event.
func NewReleaseFailed(releaseID string, failure ReleaseFailedMeta) (*ReleaseFailed, error) {
	payload, err := json.Marshal(failure)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ReleaseFailed payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			WithContext("stage", failure.Stage).
			Build()
	}

	return &ReleaseFailed{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeReleaseFailed,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Failure: failure,
	}, nil
}

// ReleaseReportData contains the key fields from a release report.
// This is a subset of pipeline.Report optimized for event storage.
type ReleaseReportData struct {
	Outcome        string           `json:"outcome"`
	Summary        string           `json:"summary"`
	Path           string           `json:"path,omitempty"`
	Artifacts      int              `json:"artifacts"`
	Uploaded       int              `json:"uploaded"`
	Skipped        int              `json:"skipped"`
	StageDurations map[string]int64 `json:"stage_durations_ms"` // stage -> milliseconds
	Errors         []string         `json:"errors,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// ReleaseReportGenerated is emitted when a release report is finalized.
type ReleaseReportGenerated struct {
	BaseEvent
	Report ReleaseReportData `json:"report"`
}

// NewReleaseReportGenerated creates a ReleaseReportGenerated event.
func NewReleaseReportGenerated(releaseID string, report ReleaseReportData) (*ReleaseReportGenerated, error) {
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal ReleaseReportGenerated payload").
			WithCause(err).
			WithContext("release_id", releaseID).
			Build()
	}

	return &ReleaseReportGenerated{
		BaseEvent: BaseEvent{
			EventReleaseID: releaseID,
			EventType:      TypeReleaseReportGenerated,
			EventTimestamp: time.Now(),
			EventPayload:   payload,
		},
		Report: report,
	}, nil
}
