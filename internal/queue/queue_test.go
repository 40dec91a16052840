package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felloworks/wheelwright/internal/config"
	wwerrors "github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/metrics"
	"github.com/felloworks/wheelwright/internal/pipeline"
	"github.com/felloworks/wheelwright/internal/retry"
)

// Mock releaser returning a fixed report and error.
type mockReleaser struct {
	report *pipeline.Report
	err    error
	calls  int
}

func (m *mockReleaser) Release(_ context.Context, _ *ReleaseJob) (*pipeline.Report, error) {
	m.calls++
	return m.report, m.err
}

// Mock releaser that fails with a transient upload error for the first
// `failures` calls and succeeds afterwards.
type flakyReleaser struct {
	failures int
	calls    int
}

func (m *flakyReleaser) Release(_ context.Context, job *ReleaseJob) (*pipeline.Report, error) {
	m.calls++
	report := pipeline.NewReport(job.ID)
	if m.calls <= m.failures {
		se := &pipeline.StageError{
			Kind:  pipeline.StageErrorFatal,
			Stage: pipeline.StageUpload,
			Err:   wwerrors.NetworkError("failed to reach index").Build(),
		}
		report.Errors = append(report.Errors, se)
		report.Finish()
		return report, se
	}
	report.Finish()
	return report, nil
}

func newTestQueue(r Releaser) *ReleaseQueue {
	return &ReleaseQueue{
		releaser:    r,
		active:      make(map[string]*ReleaseJob),
		history:     make([]*ReleaseJob, 0),
		historySize: 10,
		recorder:    metrics.NoopRecorder{},
	}
}

func TestProcessJobSuccess(t *testing.T) {
	report := pipeline.NewReport("job-1")
	report.Finish()
	releaser := &mockReleaser{report: report}
	rq := newTestQueue(releaser)

	job := &ReleaseJob{ID: "job-1", Type: ReleaseTypeManual, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if job.Status != ReleaseStatusCompleted {
		t.Fatalf("expected status %s, got %s", ReleaseStatusCompleted, job.Status)
	}
	if job.Report == nil {
		t.Fatal("expected report to be attached to the job")
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatal("expected start and completion timestamps")
	}
	if len(rq.GetActiveJobs()) != 0 {
		t.Fatalf("expected no active jobs, got %d", len(rq.GetActiveJobs()))
	}
	if _, ok := rq.JobSnapshot("job-1"); !ok {
		t.Fatal("expected completed job in history")
	}
}

func TestProcessJobFailure(t *testing.T) {
	releaseErr := errors.New("sdist build failed")
	releaser := &mockReleaser{err: releaseErr}
	rq := newTestQueue(releaser)

	job := &ReleaseJob{ID: "job-2", Type: ReleaseTypeManual, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if job.Status != ReleaseStatusFailed {
		t.Fatalf("expected status %s, got %s", ReleaseStatusFailed, job.Status)
	}
	if job.Error != releaseErr.Error() {
		t.Fatalf("expected error %q, got %q", releaseErr.Error(), job.Error)
	}
	if releaser.calls != 1 {
		t.Fatalf("expected 1 release call without retries, got %d", releaser.calls)
	}
}

func TestProcessJobCanceled(t *testing.T) {
	se := &pipeline.StageError{Kind: pipeline.StageErrorCanceled, Stage: pipeline.StageBuild, Err: context.Canceled}
	releaser := &mockReleaser{err: se}
	rq := newTestQueue(releaser)

	job := &ReleaseJob{ID: "job-3", Type: ReleaseTypeScheduled, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if job.Status != ReleaseStatusCanceled {
		t.Fatalf("expected status %s, got %s", ReleaseStatusCanceled, job.Status)
	}
}

func TestEnqueue(t *testing.T) {
	rq := newTestQueue(&mockReleaser{})
	rq.jobs = make(chan *ReleaseJob, 1)

	if err := rq.Enqueue(nil); err == nil {
		t.Fatal("expected error for nil job")
	}
	if err := rq.Enqueue(&ReleaseJob{}); err == nil {
		t.Fatal("expected error for missing job ID")
	}

	job := &ReleaseJob{ID: "job-1", Type: ReleaseTypeAPI}
	if err := rq.Enqueue(job); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}
	if job.Status != ReleaseStatusQueued {
		t.Fatalf("expected status %s, got %s", ReleaseStatusQueued, job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}
	if rq.Length() != 1 {
		t.Fatalf("expected queue length 1, got %d", rq.Length())
	}

	err := rq.Enqueue(&ReleaseJob{ID: "job-2"})
	if err == nil || err.Error() != "release queue is full" {
		t.Fatalf("expected queue full error, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	rq := New(0, 0, &mockReleaser{})
	if cap(rq.jobs) != 16 {
		t.Fatalf("expected default queue size 16, got %d", cap(rq.jobs))
	}
	if rq.workers != 1 {
		t.Fatalf("expected default worker count 1, got %d", rq.workers)
	}
	if rq.historySize != 50 {
		t.Fatalf("expected history size 50, got %d", rq.historySize)
	}
}

func TestExecuteReleaseRetriesTransient(t *testing.T) {
	releaser := &flakyReleaser{failures: 2}
	rq := newTestQueue(releaser)
	rq.retryPolicy = retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}

	job := &ReleaseJob{ID: "job-4", Type: ReleaseTypeScheduled, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if job.Status != ReleaseStatusCompleted {
		t.Fatalf("expected status %s after retries, got %s", ReleaseStatusCompleted, job.Status)
	}
	if releaser.calls != 3 {
		t.Fatalf("expected 3 release calls, got %d", releaser.calls)
	}
	if job.Report == nil || job.Report.Retries != 2 {
		t.Fatalf("expected 2 retries recorded on the report, got %+v", job.Report)
	}
}

func TestExecuteReleaseNonTransientNoRetry(t *testing.T) {
	report := pipeline.NewReport("job-5")
	se := &pipeline.StageError{
		Kind:  pipeline.StageErrorFatal,
		Stage: pipeline.StageVerify,
		Err:   wwerrors.ValidationError("long description failed to render").Build(),
	}
	report.Errors = append(report.Errors, se)
	report.Finish()

	releaser := &mockReleaser{report: report, err: se}
	rq := newTestQueue(releaser)
	rq.retryPolicy = retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 5}

	job := &ReleaseJob{ID: "job-5", Type: ReleaseTypeManual, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if releaser.calls != 1 {
		t.Fatalf("expected deterministic failure not to retry, got %d calls", releaser.calls)
	}
	if job.Status != ReleaseStatusFailed {
		t.Fatalf("expected status %s, got %s", ReleaseStatusFailed, job.Status)
	}
}

func TestExecuteReleaseRetriesExhausted(t *testing.T) {
	releaser := &flakyReleaser{failures: 10}
	rq := newTestQueue(releaser)
	rq.retryPolicy = retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}

	job := &ReleaseJob{ID: "job-6", Type: ReleaseTypeScheduled, Priority: PriorityNormal, Status: ReleaseStatusQueued}
	rq.processJob(t.Context(), job, "worker-0")

	if job.Status != ReleaseStatusFailed {
		t.Fatalf("expected status %s, got %s", ReleaseStatusFailed, job.Status)
	}
	if releaser.calls != 3 {
		t.Fatalf("expected 1 attempt plus 2 retries, got %d calls", releaser.calls)
	}
	if job.Report == nil || !job.Report.RetriesExhausted {
		t.Fatal("expected retries exhausted flag on the report")
	}
	if job.Report.Retries != 2 {
		t.Fatalf("expected 2 retries recorded, got %d", job.Report.Retries)
	}
}

func TestJobSnapshot(t *testing.T) {
	rq := newTestQueue(&mockReleaser{})

	activeJob := &ReleaseJob{ID: "active-1", Status: ReleaseStatusRunning}
	rq.active[activeJob.ID] = activeJob
	doneJob := &ReleaseJob{ID: "done-1", Status: ReleaseStatusCompleted}
	rq.addToHistory(doneJob)

	snap, ok := rq.JobSnapshot("active-1")
	if !ok || snap.Status != ReleaseStatusRunning {
		t.Fatalf("expected running snapshot, got %+v (ok=%v)", snap, ok)
	}
	snap.Status = ReleaseStatusFailed
	if activeJob.Status != ReleaseStatusRunning {
		t.Fatal("snapshot must be a copy, not the live job")
	}

	if snap, ok := rq.JobSnapshot("done-1"); !ok || snap.Status != ReleaseStatusCompleted {
		t.Fatalf("expected completed snapshot from history, got %+v (ok=%v)", snap, ok)
	}
	if _, ok := rq.JobSnapshot("missing"); ok {
		t.Fatal("expected no snapshot for unknown job")
	}
}

func TestHistoryRing(t *testing.T) {
	rq := newTestQueue(&mockReleaser{})
	rq.historySize = 3

	for i := range 5 {
		rq.addToHistory(&ReleaseJob{ID: "job-" + string(rune('a'+i))})
	}

	if len(rq.history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(rq.history))
	}
	if rq.history[0].ID != "job-c" || rq.history[2].ID != "job-e" {
		t.Fatalf("expected oldest entries evicted, got %s..%s", rq.history[0].ID, rq.history[2].ID)
	}
}

func TestQueueLifecycle(t *testing.T) {
	report := pipeline.NewReport("job-1")
	report.Finish()
	rq := New(4, 1, &mockReleaser{report: report})

	ctx := t.Context()
	rq.Start(ctx)

	if err := rq.Enqueue(&ReleaseJob{ID: "job-1", Type: ReleaseTypeManual, Priority: PriorityNormal}); err != nil {
		t.Fatalf("unexpected enqueue error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if snap, ok := rq.JobSnapshot("job-1"); ok && snap.Status == ReleaseStatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job did not complete in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	rq.Stop(ctx)
}
