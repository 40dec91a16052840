package daemon

import (
	"context"

	"github.com/felloworks/wheelwright/internal/eventstore"
	"github.com/felloworks/wheelwright/internal/pipeline"
	"github.com/felloworks/wheelwright/internal/queue"
)

// pipelineReleaser adapts the release pipeline to the queue's Releaser
// interface. Each job gets a fresh runner and event observer so config
// reloads take effect on the next job, not mid-run.
type pipelineReleaser struct {
	d *Daemon
}

func (r pipelineReleaser) Release(ctx context.Context, job *queue.ReleaseJob) (*pipeline.Report, error) {
	cfg := r.d.GetConfig()

	observers := pipeline.MultiObserver{pipeline.RecorderObserver{Recorder: r.d.recorder}}
	if r.d.store != nil {
		obs := eventstore.NewObserver(r.d.store, r.d.projection, string(job.Type))
		if r.d.publisher != nil {
			obs.SetSink(r.d.publisher)
		}
		observers = append(observers, obs)
	}

	runner := &pipeline.Runner{
		Config:   cfg,
		Options:  pipeline.Options{Repository: job.Repository},
		Observer: observers,
		Stages:   pipeline.ReleaseStages(),
	}
	return runner.Run(ctx)
}

var _ queue.Releaser = pipelineReleaser{}
