package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	stageDuration   *prom.HistogramVec
	releaseDuration prom.Histogram
	stageResults    *prom.CounterVec
	releaseOutcome  *prom.CounterVec
	uploadDuration  *prom.HistogramVec
	artifactsBuilt  *prom.CounterVec
	uploadsSkipped  prom.Counter
	releaseRetries  prom.Counter
	queueDepth      prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "wheelwright",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual release stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.releaseDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "wheelwright",
			Name:      "release_duration_seconds",
			Help:      "Total release duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wheelwright",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.releaseOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wheelwright",
			Name:      "release_outcomes_total",
			Help:      "Release outcomes by final status",
		}, []string{"outcome"})
		pr.uploadDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "wheelwright",
			Name:      "upload_duration_seconds",
			Help:      "Duration of individual file uploads",
			Buckets:   prom.DefBuckets,
		}, []string{"repository", "result"})
		pr.artifactsBuilt = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "wheelwright",
			Name:      "artifacts_built_total",
			Help:      "Distribution files produced by kind",
		}, []string{"kind"})
		pr.uploadsSkipped = prom.NewCounter(prom.CounterOpts{
			Namespace: "wheelwright",
			Name:      "uploads_skipped_total",
			Help:      "Uploads skipped because the file already existed",
		})
		pr.releaseRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: "wheelwright",
			Name:      "release_retries_total",
			Help:      "Release jobs re-queued after transient failures",
		})
		pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
			Namespace: "wheelwright",
			Name:      "queue_depth",
			Help:      "Release jobs currently queued",
		})
		reg.MustRegister(pr.stageDuration, pr.releaseDuration, pr.stageResults, pr.releaseOutcome,
			pr.uploadDuration, pr.artifactsBuilt, pr.uploadsSkipped, pr.releaseRetries, pr.queueDepth)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveReleaseDuration(d time.Duration) {
	if p == nil || p.releaseDuration == nil {
		return
	}
	p.releaseDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncReleaseOutcome(outcome OutcomeLabel) {
	if p == nil || p.releaseOutcome == nil {
		return
	}
	p.releaseOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveUploadDuration(repository string, d time.Duration, success bool) {
	if p == nil || p.uploadDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.uploadDuration.WithLabelValues(repository, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncArtifactBuilt(kind string) {
	if p == nil || p.artifactsBuilt == nil {
		return
	}
	p.artifactsBuilt.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncUploadSkipped() {
	if p == nil || p.uploadsSkipped == nil {
		return
	}
	p.uploadsSkipped.Inc()
}

func (p *PrometheusRecorder) IncReleaseRetry() {
	if p == nil || p.releaseRetries == nil {
		return
	}
	p.releaseRetries.Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}
