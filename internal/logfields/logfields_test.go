package logfields

import (
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    interface{}
	}{
		{"JobID", KeyJobID, "123", JobID("123")},
		{"JobType", KeyJobType, "manual", JobType("manual")},
		{"JobStatus", KeyJobStatus, "queued", JobStatus("queued")},
		{"Stage", KeyStage, "build", Stage("build")},
		{"ReleaseID", KeyReleaseID, "rel1", ReleaseID("rel1")},
		{"Project", KeyProject, "torchness", Project("torchness")},
		{"Version", KeyVersion, "1.0.1", Version("1.0.1")},
		{"Artifact", KeyArtifact, "torchness-1.0.1-py3-none-any.whl", Artifact("torchness-1.0.1-py3-none-any.whl")},
		{"Kind", KeyKind, "wheel", Kind("wheel")},
		{"Repository", KeyRepo, "pypi", Repository("pypi")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
	}

	for _, tc := range cases {
		a := tc.attr.(slog.Attr)
		if a.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, a.Key)
		}
		if got := a.Value.String(); got != tc.attrVal { // Value is slog.Value
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & float helpers.
func TestNumericHelpers(t *testing.T) {
	if v := JobPriority(5); v.Key != KeyJobPriority {
		t.Fatalf("JobPriority key mismatch: %s", v.Key)
	}
	if v := DurationMS(12.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
