package pipeline

import (
	"time"

	"github.com/felloworks/wheelwright/internal/artifact"
	"github.com/felloworks/wheelwright/internal/index"
	"github.com/felloworks/wheelwright/internal/metrics"
)

// Observer receives callbacks around stage execution and release lifecycle.
// It abstracts away the metrics.Recorder so other observers (event stream,
// release history, notifications) can hook in without changing stage code.
type Observer interface {
	OnReleaseStart(report *Report)
	OnStageStart(stage StageName)
	OnStageComplete(stage StageName, duration time.Duration, result ResultKind)
	OnArtifactBuilt(art artifact.Artifact)
	OnUploadComplete(repository string, res index.UploadResult, duration time.Duration, err error)
	OnReleaseComplete(report *Report)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnReleaseStart(_ *Report)                                                  {}
func (NoopObserver) OnStageStart(_ StageName)                                                  {}
func (NoopObserver) OnStageComplete(_ StageName, _ time.Duration, _ ResultKind)                {}
func (NoopObserver) OnArtifactBuilt(_ artifact.Artifact)                                       {}
func (NoopObserver) OnUploadComplete(_ string, _ index.UploadResult, _ time.Duration, _ error) {}
func (NoopObserver) OnReleaseComplete(_ *Report)                                               {}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnReleaseStart(_ *Report) {}
func (r RecorderObserver) OnStageStart(_ StageName) {}

func (r RecorderObserver) OnStageComplete(stage StageName, d time.Duration, result ResultKind) {
	if r.Recorder != nil {
		r.Recorder.ObserveStageDuration(string(stage), d)
		r.Recorder.IncStageResult(string(stage), metrics.ResultLabel(result))
	}
}

func (r RecorderObserver) OnArtifactBuilt(art artifact.Artifact) {
	if r.Recorder != nil {
		r.Recorder.IncArtifactBuilt(string(art.Kind))
	}
}

func (r RecorderObserver) OnUploadComplete(repository string, res index.UploadResult, d time.Duration, err error) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.ObserveUploadDuration(repository, d, err == nil)
	if res.Status == index.StatusSkipped {
		r.Recorder.IncUploadSkipped()
	}
}

func (r RecorderObserver) OnReleaseComplete(report *Report) {
	if r.Recorder != nil {
		r.Recorder.ObserveReleaseDuration(report.Duration())
		r.Recorder.IncReleaseOutcome(metrics.OutcomeLabel(report.Outcome))
	}
}

// MultiObserver fans callbacks out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnReleaseStart(report *Report) {
	for _, o := range m {
		o.OnReleaseStart(report)
	}
}

func (m MultiObserver) OnStageStart(stage StageName) {
	for _, o := range m {
		o.OnStageStart(stage)
	}
}

func (m MultiObserver) OnStageComplete(stage StageName, d time.Duration, result ResultKind) {
	for _, o := range m {
		o.OnStageComplete(stage, d, result)
	}
}

func (m MultiObserver) OnArtifactBuilt(art artifact.Artifact) {
	for _, o := range m {
		o.OnArtifactBuilt(art)
	}
}

func (m MultiObserver) OnUploadComplete(repository string, res index.UploadResult, d time.Duration, err error) {
	for _, o := range m {
		o.OnUploadComplete(repository, res, d, err)
	}
}

func (m MultiObserver) OnReleaseComplete(report *Report) {
	for _, o := range m {
		o.OnReleaseComplete(report)
	}
}
