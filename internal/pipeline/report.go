package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Outcome is the typed enumeration of final release result states.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// ResultKind is the per-stage result recorded in the report.
type ResultKind string

const (
	ResultSuccess  ResultKind = "success"
	ResultWarning  ResultKind = "warning"
	ResultFatal    ResultKind = "fatal"
	ResultCanceled ResultKind = "canceled"
)

// ReportArtifact is the per-file slice of the report.
type ReportArtifact struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Report captures metrics and outcomes for one release run.
type Report struct {
	SchemaVersion int       `json:"schema_version"`
	ReleaseID     string    `json:"release_id"`
	Project       string    `json:"project,omitempty"`
	Version       string    `json:"version,omitempty"`
	Repository    string    `json:"repository,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`

	Errors   []error `json:"-"`
	Warnings []error `json:"-"`

	StageDurations map[StageName]time.Duration `json:"-"`
	StageResults   map[StageName]ResultKind    `json:"-"`

	Artifacts      []ReportArtifact `json:"artifacts,omitempty"`
	Uploaded       int              `json:"uploaded"`
	SkippedUploads int              `json:"skipped_uploads"`

	// Retry bookkeeping, filled in by the daemon queue.
	Retries          int  `json:"retries,omitempty"`
	RetriesExhausted bool `json:"retries_exhausted,omitempty"`

	GitCommit string `json:"git_commit,omitempty"`
	GitTag    string `json:"git_tag,omitempty"`
	GitDirty  bool   `json:"git_dirty,omitempty"`

	Outcome Outcome `json:"outcome"`

	// ReportPath is where the JSON report was persisted, set after a
	// successful write.
	ReportPath string `json:"report_path,omitempty"`
}

// NewReport constructs a Report with maps initialized and the clock started.
func NewReport(releaseID string) *Report {
	return &Report{
		SchemaVersion:  1,
		ReleaseID:      releaseID,
		Start:          time.Now(),
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]ResultKind),
	}
}

// Finish stamps the end time and derives the outcome.
func (r *Report) Finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
	r.deriveOutcome()
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("project=%s version=%s repository=%s duration=%s artifacts=%d uploaded=%d skipped=%d errors=%d warnings=%d outcome=%s",
		r.Project, r.Version, r.Repository, r.Duration().Truncate(time.Millisecond),
		len(r.Artifacts), r.Uploaded, r.SkippedUploads, len(r.Errors), len(r.Warnings), r.Outcome)
}

// deriveOutcome sets the Outcome field based on recorded errors and warnings.
func (r *Report) deriveOutcome() {
	if len(r.Errors) > 0 {
		for _, e := range r.Errors {
			if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
				r.Outcome = OutcomeCanceled
				return
			}
		}
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// reportSerializable mirrors Report with error lists and typed maps converted
// for stable JSON output.
type reportSerializable struct {
	Report
	ErrorMessages   []string               `json:"errors,omitempty"`
	WarningMessages []string               `json:"warnings,omitempty"`
	Stages          map[string]reportStage `json:"stages"`
}

type reportStage struct {
	DurationMS int64  `json:"duration_ms"`
	Result     string `json:"result"`
}

func (r *Report) sanitizedCopy() *reportSerializable {
	out := &reportSerializable{Report: *r}
	for _, e := range r.Errors {
		out.ErrorMessages = append(out.ErrorMessages, e.Error())
	}
	for _, w := range r.Warnings {
		out.WarningMessages = append(out.WarningMessages, w.Error())
	}
	out.Stages = make(map[string]reportStage, len(r.StageDurations))
	for name, d := range r.StageDurations {
		out.Stages[string(name)] = reportStage{
			DurationMS: d.Milliseconds(),
			Result:     string(r.StageResults[name]),
		}
	}
	return out
}

// Persist writes the report atomically into dir as release-report.json and
// release-report.txt. Best effort; failures are for caller logging and never
// change the release outcome.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}

	jb, err := json.MarshalIndent(r.sanitizedCopy(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	jsonPath := filepath.Join(dir, "release-report.json")
	tmpJSON := jsonPath + ".tmp"
	if err := os.WriteFile(tmpJSON, jb, 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmpJSON, jsonPath); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	r.ReportPath = jsonPath

	txtPath := filepath.Join(dir, "release-report.txt")
	tmpTxt := txtPath + ".tmp"
	if err := os.WriteFile(tmpTxt, []byte(r.Summary()+"\n"), 0o644); err != nil {
		return fmt.Errorf("write temp report summary: %w", err)
	}
	if err := os.Rename(tmpTxt, txtPath); err != nil {
		return fmt.Errorf("atomic rename summary: %w", err)
	}
	return nil
}
