package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// OutcomeLabel enumerates final release outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeWarning  OutcomeLabel = "warning"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for release and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. The
// NoopRecorder allows optional injection without nil checks at call sites.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveReleaseDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncReleaseOutcome(outcome OutcomeLabel)
	ObserveUploadDuration(repository string, d time.Duration, success bool)
	IncArtifactBuilt(kind string)
	IncUploadSkipped()
	IncReleaseRetry()
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)        {}
func (NoopRecorder) ObserveReleaseDuration(time.Duration)              {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                {}
func (NoopRecorder) IncReleaseOutcome(OutcomeLabel)                    {}
func (NoopRecorder) ObserveUploadDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncArtifactBuilt(string)                           {}
func (NoopRecorder) IncUploadSkipped()                                 {}
func (NoopRecorder) IncReleaseRetry()                                  {}
func (NoopRecorder) SetQueueDepth(int)                                 {}
