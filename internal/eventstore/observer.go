package eventstore

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/felloworks/wheelwright/internal/artifact"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/index"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// Sink receives events after they are persisted, used to fan events out to
// an external bus.
type Sink interface {
	Publish(event Event) error
}

// Observer records pipeline progress as events in the store and keeps the
// history projection in sync. Create one per release run; it captures the
// release ID when the run starts.
type Observer struct {
	store      Store
	projection *ReleaseHistoryProjection
	sink       Sink
	trigger    string
	releaseID  string
}

// NewObserver creates an observer appending to store. The projection may be
// nil. Trigger names what started the run, one of "manual", "scheduled" or
// "api".
func NewObserver(store Store, projection *ReleaseHistoryProjection, trigger string) *Observer {
	return &Observer{
		store:      store,
		projection: projection,
		trigger:    trigger,
	}
}

// SetSink attaches a publisher receiving every recorded event.
func (o *Observer) SetSink(sink Sink) { o.sink = sink }

// record persists an event and updates the projection. Event store problems
// must never fail a release, so errors are logged and dropped.
func (o *Observer) record(event Event, err error) {
	if err != nil {
		slog.Warn("Failed to build release event", logfields.ReleaseID(o.releaseID), logfields.Error(err))
		return
	}
	if o.store == nil {
		return
	}

	if err := o.store.Append(context.Background(), event.ReleaseID(), event.Type(), event.Payload(), event.Metadata()); err != nil {
		slog.Warn("Failed to record release event",
			logfields.ReleaseID(event.ReleaseID()),
			slog.String("event", event.Type()),
			logfields.Error(err))
		return
	}

	if o.projection != nil {
		o.projection.Apply(event)
	}

	if o.sink != nil {
		if err := o.sink.Publish(event); err != nil {
			slog.Warn("Failed to publish release event",
				logfields.ReleaseID(event.ReleaseID()),
				slog.String("event", event.Type()),
				logfields.Error(err))
		}
	}
}

// OnReleaseStart implements pipeline.Observer.
func (o *Observer) OnReleaseStart(rep *pipeline.Report) {
	o.releaseID = rep.ReleaseID
	o.record(NewReleaseStarted(rep.ReleaseID, rep.Project, rep.Version, rep.Repository, o.trigger))
}

// OnStageStart implements pipeline.Observer.
func (o *Observer) OnStageStart(pipeline.StageName) {}

// OnStageComplete implements pipeline.Observer.
func (o *Observer) OnStageComplete(pipeline.StageName, time.Duration, pipeline.ResultKind) {}

// OnArtifactBuilt implements pipeline.Observer.
func (o *Observer) OnArtifactBuilt(art artifact.Artifact) {
	o.record(NewArtifactBuilt(o.releaseID, art.Name, string(art.Kind), art.Size, art.SHA256))
}

// OnUploadComplete implements pipeline.Observer.
func (o *Observer) OnUploadComplete(repository string, res index.UploadResult, duration time.Duration, err error) {
	if err != nil {
		o.record(NewUploadCompleted(o.releaseID, res.Artifact, repository, "failed", duration))
		return
	}
	if res.Status == index.StatusSkipped {
		o.record(NewUploadSkipped(o.releaseID, res.Artifact, repository, "file already exists on the index"))
		return
	}
	o.record(NewUploadCompleted(o.releaseID, res.Artifact, repository, string(res.Status), duration))
}

// OnReleaseComplete implements pipeline.Observer.
func (o *Observer) OnReleaseComplete(rep *pipeline.Report) {
	switch rep.Outcome {
	case pipeline.OutcomeFailed, pipeline.OutcomeCanceled:
		o.record(NewReleaseFailed(rep.ReleaseID, failureMeta(rep)))
	default:
		o.record(NewReleaseCompleted(rep.ReleaseID, ReleaseCompletedMeta{
			Project:    rep.Project,
			Version:    rep.Version,
			Repository: rep.Repository,
			Outcome:    string(rep.Outcome),
			DurationMS: rep.Duration().Milliseconds(),
			Uploaded:   rep.Uploaded,
			Skipped:    rep.SkippedUploads,
			Warnings:   len(rep.Warnings),
		}))
	}

	o.record(NewReleaseReportGenerated(rep.ReleaseID, convertReport(rep)))
}

// failureMeta extracts the failing stage and cause from a finished report.
func failureMeta(rep *pipeline.Report) ReleaseFailedMeta {
	meta := ReleaseFailedMeta{
		Project: rep.Project,
		Version: rep.Version,
		Outcome: string(rep.Outcome),
	}
	if len(rep.Errors) == 0 {
		return meta
	}

	first := rep.Errors[0]
	meta.Error = truncateMessage(first.Error())
	meta.Category = string(errors.GetCategory(first))

	var se *pipeline.StageError
	if stderrors.As(first, &se) {
		meta.Stage = string(se.Stage)
		meta.Error = truncateMessage(se.Err.Error())
	}
	return meta
}

// convertReport converts a pipeline.Report to ReleaseReportData.
func convertReport(rep *pipeline.Report) ReleaseReportData {
	data := ReleaseReportData{
		Outcome:   string(rep.Outcome),
		Summary:   rep.Summary(),
		Path:      rep.ReportPath,
		Artifacts: len(rep.Artifacts),
		Uploaded:  rep.Uploaded,
		Skipped:   rep.SkippedUploads,
	}

	if len(rep.StageDurations) > 0 {
		data.StageDurations = make(map[string]int64, len(rep.StageDurations))
		for k, v := range rep.StageDurations {
			data.StageDurations[string(k)] = v.Milliseconds()
		}
	}

	for _, e := range rep.Errors {
		data.Errors = append(data.Errors, truncateMessage(e.Error()))
	}
	for _, w := range rep.Warnings {
		data.Warnings = append(data.Warnings, truncateMessage(w.Error()))
	}

	return data
}

// truncateMessage keeps event payloads bounded when tool output ends up in
// error strings.
func truncateMessage(msg string) string {
	if len(msg) > 500 {
		return msg[:500] + "…"
	}
	return msg
}

// Compile-time check that Observer implements pipeline.Observer.
var _ pipeline.Observer = (*Observer)(nil)
