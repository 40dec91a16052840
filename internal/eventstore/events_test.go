package eventstore

import (
	"encoding/json"
	"testing"
	"time"
)

const testReleaseID = "rel-123"

func TestEventSerialization(t *testing.T) {
	releaseID := testReleaseID

	tests := []struct {
		name      string
		createFn  func() (Event, error)
		eventType string
	}{
		{
			name: "ReleaseStarted",
			createFn: func() (Event, error) {
				return NewReleaseStarted(releaseID, "torchness", "1.0.1", "pypi", "manual")
			},
			eventType: TypeReleaseStarted,
		},
		{
			name: "ArtifactBuilt",
			createFn: func() (Event, error) {
				return NewArtifactBuilt(releaseID, "torchness-1.0.1-py3-none-any.whl", "wheel", 2048, "deadbeef")
			},
			eventType: TypeArtifactBuilt,
		},
		{
			name: "UploadCompleted",
			createFn: func() (Event, error) {
				return NewUploadCompleted(releaseID, "torchness-1.0.1.tar.gz", "pypi", "uploaded", 1500*time.Millisecond)
			},
			eventType: TypeUploadCompleted,
		},
		{
			name: "UploadSkipped",
			createFn: func() (Event, error) {
				return NewUploadSkipped(releaseID, "torchness-1.0.1.tar.gz", "pypi", "file already exists on the index")
			},
			eventType: TypeUploadSkipped,
		},
		{
			name: "ReleaseCompleted",
			createFn: func() (Event, error) {
				return NewReleaseCompleted(releaseID, ReleaseCompletedMeta{
					Project: "torchness", Version: "1.0.1", Outcome: "success", Uploaded: 2,
				})
			},
			eventType: TypeReleaseCompleted,
		},
		{
			name: "ReleaseFailed",
			createFn: func() (Event, error) {
				return NewReleaseFailed(releaseID, ReleaseFailedMeta{
					Stage: "build", Error: "sdist build failed", Outcome: "failed",
				})
			},
			eventType: TypeReleaseFailed,
		},
		{
			name: "ReleaseReportGenerated",
			createFn: func() (Event, error) {
				return NewReleaseReportGenerated(releaseID, ReleaseReportData{
					Outcome: "success", Summary: "ok", Artifacts: 2,
				})
			},
			eventType: TypeReleaseReportGenerated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := tt.createFn()
			if err != nil {
				t.Fatalf("failed to create event: %v", err)
			}

			if event.ReleaseID() != releaseID {
				t.Errorf("expected release_id %s, got %s", releaseID, event.ReleaseID())
			}
			if event.Type() != tt.eventType {
				t.Errorf("expected event_type %s, got %s", tt.eventType, event.Type())
			}
			if event.Timestamp().IsZero() {
				t.Error("timestamp should not be zero")
			}

			// Verify payload is valid JSON
			payload := event.Payload()
			if len(payload) == 0 {
				t.Error("payload should not be empty")
			}

			var data map[string]any
			if err := json.Unmarshal(payload, &data); err != nil {
				t.Errorf("failed to unmarshal payload: %v", err)
			}
		})
	}
}

func TestReleaseStartedFields(t *testing.T) {
	event, err := NewReleaseStarted(testReleaseID, "torchness", "1.0.1", "pypi", "scheduled")
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	if event.Project != "torchness" {
		t.Errorf("expected project torchness, got %s", event.Project)
	}
	if event.Version != "1.0.1" {
		t.Errorf("expected version 1.0.1, got %s", event.Version)
	}
	if event.Repository != "pypi" {
		t.Errorf("expected repository pypi, got %s", event.Repository)
	}
	if event.Trigger != "scheduled" {
		t.Errorf("expected trigger scheduled, got %s", event.Trigger)
	}
}

func TestUploadCompletedPayloadDuration(t *testing.T) {
	event, err := NewUploadCompleted(testReleaseID, "torchness-1.0.1.tar.gz", "pypi", "uploaded", 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	var payload struct {
		DurationMS int64 `json:"duration_ms"`
	}
	if err := json.Unmarshal(event.Payload(), &payload); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if payload.DurationMS != 1500 {
		t.Errorf("expected duration_ms 1500, got %d", payload.DurationMS)
	}
}

func TestReleaseCompletedPayloadRoundTrip(t *testing.T) {
	meta := ReleaseCompletedMeta{
		Project:    "torchness",
		Version:    "1.0.1",
		Repository: "pypi",
		Outcome:    "warning",
		DurationMS: 4200,
		Uploaded:   2,
		Skipped:    1,
		Warnings:   1,
	}

	event, err := NewReleaseCompleted(testReleaseID, meta)
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	// The projection reads the meta back from the payload, so the field
	// shapes must round-trip.
	var decoded ReleaseCompletedMeta
	if err := json.Unmarshal(event.Payload(), &decoded); err != nil {
		t.Fatalf("failed to unmarshal payload: %v", err)
	}
	if decoded != meta {
		t.Errorf("expected %+v, got %+v", meta, decoded)
	}
}

func TestReleaseFailedFields(t *testing.T) {
	failure := ReleaseFailedMeta{
		Project:  "torchness",
		Version:  "1.0.1",
		Stage:    "upload",
		Error:    "403 Forbidden",
		Category: "auth",
		Outcome:  "failed",
	}

	event, err := NewReleaseFailed(testReleaseID, failure)
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	if event.Failure.Stage != "upload" {
		t.Errorf("expected stage upload, got %s", event.Failure.Stage)
	}
	if event.Failure.Error != "403 Forbidden" {
		t.Errorf("expected error '403 Forbidden', got %s", event.Failure.Error)
	}
	if event.Failure.Category != "auth" {
		t.Errorf("expected category auth, got %s", event.Failure.Category)
	}
}
