package events

import (
	"encoding/json"
	"testing"

	"github.com/felloworks/wheelwright/internal/eventstore"
)

func TestStreamName(t *testing.T) {
	p := &Publisher{prefix: "wheelwright.releases"}
	if got := p.streamName(); got != "WHEELWRIGHT_RELEASES" {
		t.Errorf("streamName() = %q, want WHEELWRIGHT_RELEASES", got)
	}
}

func TestSubjectFor(t *testing.T) {
	p := &Publisher{prefix: "wheelwright.releases"}
	got := p.subjectFor(eventstore.TypeReleaseCompleted)
	if got != "wheelwright.releases.ReleaseCompleted" {
		t.Errorf("subjectFor() = %q", got)
	}
}

func TestEnvelopeCarriesRawPayload(t *testing.T) {
	event, err := eventstore.NewReleaseStarted("rel-1", "torchness", "1.0.1", "pypi", "manual")
	if err != nil {
		t.Fatalf("failed to create event: %v", err)
	}

	data, err := json.Marshal(envelope{
		ReleaseID: event.ReleaseID(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Payload:   json.RawMessage(event.Payload()),
	})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}

	var decoded struct {
		ReleaseID string `json:"release_id"`
		Type      string `json:"type"`
		Payload   struct {
			Project string `json:"project"`
			Trigger string `json:"trigger"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}

	if decoded.ReleaseID != "rel-1" {
		t.Errorf("expected release_id rel-1, got %q", decoded.ReleaseID)
	}
	if decoded.Type != eventstore.TypeReleaseStarted {
		t.Errorf("expected type ReleaseStarted, got %q", decoded.Type)
	}
	// The payload must nest as JSON, not as an escaped string
	if decoded.Payload.Project != "torchness" {
		t.Errorf("expected payload project torchness, got %q", decoded.Payload.Project)
	}
	if decoded.Payload.Trigger != "manual" {
		t.Errorf("expected payload trigger manual, got %q", decoded.Payload.Trigger)
	}
}
