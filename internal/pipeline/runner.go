package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/logfields"
)

// reportDir is the state directory under the project root where release
// reports are persisted. Shares its parent with the default history path.
const reportDir = ".wheelwright"

// Runner executes a stage list against a configuration and reports the result.
// A Runner is reusable; every Run gets a fresh release ID and report.
type Runner struct {
	Config   *config.Config
	Options  Options
	Observer Observer
	Stages   []StageDef
}

// Run executes the configured stages. The returned report is always non-nil
// and fully finished; the error is the first fatal or canceled stage error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	obs := r.Observer
	if obs == nil {
		obs = NoopObserver{}
	}

	rep := NewReport(uuid.NewString())
	st := &State{
		Config:   r.Config,
		Options:  r.Options,
		Root:     r.Config.Project.Path,
		Report:   rep,
		Observer: obs,
	}

	slog.Info("Release started", logfields.ReleaseID(rep.ReleaseID), logfields.Path(st.Root))
	obs.OnReleaseStart(rep)

	runErr := runStages(ctx, st, r.Stages)
	rep.Finish()

	if err := rep.Persist(filepath.Join(st.Root, reportDir)); err != nil {
		slog.Warn("Failed to persist release report", logfields.Error(err))
	}

	obs.OnReleaseComplete(rep)
	slog.Info("Release finished", logfields.ReleaseID(rep.ReleaseID), slog.String("summary", rep.Summary()))
	return rep, runErr
}
