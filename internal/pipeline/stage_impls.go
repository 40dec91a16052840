package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/felloworks/wheelwright/internal/artifact"
	"github.com/felloworks/wheelwright/internal/buildtool"
	"github.com/felloworks/wheelwright/internal/clean"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/gitinfo"
	"github.com/felloworks/wheelwright/internal/hooks"
	"github.com/felloworks/wheelwright/internal/index"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/longdesc"
	"github.com/felloworks/wheelwright/internal/pep440"
	"github.com/felloworks/wheelwright/internal/project"
)

// stageMetadata loads project metadata and git state. It is the read-only
// stage every pipeline starts with.
func stageMetadata(_ context.Context, st *State) error {
	p, err := project.Load(st.Root)
	if err != nil {
		return newFatalStageError(StageMetadata, err)
	}
	st.Project = p
	st.Report.Project = p.Meta.Name
	st.Report.Version = p.Meta.Version

	if !st.Config.Git.ShouldAnnotate() && !st.Config.Git.RequireClean {
		return nil
	}
	info, err := gitinfo.Collect(st.Root)
	if err != nil {
		if st.Config.Git.RequireClean {
			// Cannot prove the tree is clean.
			return newFatalStageError(StageMetadata, err)
		}
		return newWarnStageError(StageMetadata, err)
	}
	st.Git = info
	st.Report.GitCommit = info.Commit
	st.Report.GitTag = info.Tag
	st.Report.GitDirty = info.Dirty

	if st.Config.Git.RequireClean && info.Present && info.Dirty {
		return newFatalStageError(StageMetadata,
			errors.GitError("working tree has uncommitted changes").
				WithContext("commit", info.Short()).
				UserAction().
				Build())
	}
	return nil
}

// stageClean removes build/, the dist directory, and the egg-info directory.
func stageClean(ctx context.Context, st *State) error {
	eggInfo := ""
	if st.Project != nil {
		eggInfo = st.Project.EggInfo()
	}
	c := clean.New(st.Root, st.DistDir(), eggInfo)
	if err := c.Clean(ctx); err != nil {
		return newFatalStageError(StageClean, err)
	}
	return nil
}

func stageHooksBefore(ctx context.Context, st *State) error {
	return runHooks(ctx, st, StageHooksBefore, "before", st.Config.Build.Hooks.Before)
}

func stageHooksAfter(ctx context.Context, st *State) error {
	return runHooks(ctx, st, StageHooksAfter, "after", st.Config.Build.Hooks.After)
}

func runHooks(ctx context.Context, st *State, stage StageName, phase string, snippets []string) error {
	if len(snippets) == 0 {
		return nil
	}
	r := &hooks.Runner{Dir: st.Root, Env: hookEnv(st)}
	if err := r.Run(ctx, phase, snippets); err != nil {
		return newFatalStageError(stage, err)
	}
	return nil
}

// hookEnv exposes release facts to hook snippets.
func hookEnv(st *State) []string {
	env := []string{"WHEELWRIGHT_DIST_DIR=" + st.DistDir()}
	if st.Project != nil {
		env = append(env,
			"WHEELWRIGHT_PROJECT="+st.Project.Meta.Name,
			"WHEELWRIGHT_VERSION="+st.Project.Meta.Version,
		)
	}
	return env
}

// stageBuild runs the external build tool that produces sdist and wheel.
func stageBuild(ctx context.Context, st *State) error {
	r := &buildtool.Runner{
		Python:       st.Config.Project.Python,
		Mode:         buildtool.ToolMode(st.Config.Build.Tool),
		Dir:          st.Root,
		DistDir:      st.DistDir(),
		PythonPath:   st.Config.Build.PythonPath,
		HasPyproject: st.Project != nil && st.Project.HasPyproject,
	}
	if err := r.Run(ctx); err != nil {
		return newFatalStageError(StageBuild, err)
	}
	return nil
}

// stageCollect scans the dist directory, computes digests, and extracts the
// embedded core metadata from every distribution found.
func stageCollect(_ context.Context, st *State) error {
	dir := filepath.Join(st.Root, st.DistDir())
	arts, skipped, err := artifact.Scan(dir)
	if err != nil {
		return newFatalStageError(StageCollect, err)
	}
	st.Artifacts = arts
	st.Skipped = skipped
	for _, name := range skipped {
		slog.Debug("Ignoring non-distribution file", logfields.Path(filepath.Join(dir, name)))
	}
	if len(arts) == 0 {
		return newFatalStageError(StageCollect,
			errors.ArtifactError("no distributions found").
				WithContext("dir", dir).
				UserAction().
				Build())
	}

	if st.Meta == nil {
		st.Meta = make(map[string]artifact.CoreMetadata, len(arts))
	}
	for _, a := range arts {
		meta, err := artifact.ExtractMetadata(a)
		if err != nil {
			return newFatalStageError(StageCollect, err)
		}
		st.Meta[a.Name] = meta
		st.Report.Artifacts = append(st.Report.Artifacts, ReportArtifact{
			Name:   a.Name,
			Kind:   string(a.Kind),
			Size:   a.Size,
			SHA256: a.SHA256,
		})
		st.Observer.OnArtifactBuilt(a)
		slog.Info("Collected distribution", logfields.Artifact(a.Name), logfields.Kind(string(a.Kind)))
	}

	// Upload-only runs skip the metadata stage; fill the report from the
	// distributions themselves.
	if st.Report.Project == "" {
		first := st.Meta[arts[0].Name]
		st.Report.Project = first.Name
		st.Report.Version = first.Version
	}
	return nil
}

// sameVersion reports whether two version spellings identify the same
// release, so 1.0 and 1.0.0 collapse. Unparseable versions fall back to
// exact comparison.
func sameVersion(a, b string) bool {
	va, errA := pep440.Parse(a)
	vb, errB := pep440.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return va.Compare(vb) == 0
}

// stageVerify checks that the collected set forms a publishable release.
func stageVerify(_ context.Context, st *State) error {
	kinds := map[artifact.Kind]int{}
	for _, a := range st.Artifacts {
		kinds[a.Kind]++
	}
	if kinds[artifact.KindSdist] == 0 || kinds[artifact.KindWheel] == 0 {
		return newFatalStageError(StageVerify,
			errors.ArtifactError("a release needs both an sdist and a wheel").
				WithContext("sdists", kinds[artifact.KindSdist]).
				WithContext("wheels", kinds[artifact.KindWheel]).
				UserAction().
				Build())
	}

	base := st.Artifacts[0]
	for _, a := range st.Artifacts[1:] {
		if project.NormalizeName(a.Project) != project.NormalizeName(base.Project) || !sameVersion(a.Version, base.Version) {
			return newFatalStageError(StageVerify,
				errors.ArtifactError("mixed distributions in dist directory").
					WithContext("found", fmt.Sprintf("%s %s vs %s %s", base.Project, base.Version, a.Project, a.Version)).
					UserAction().
					Build())
		}
	}

	if !st.Config.Check.IsEnabled() {
		return nil
	}
	strict := st.Options.Strict || st.Config.Check.Strict

	var errMsgs, warnMsgs []string
	seen := map[string]bool{}
	for _, a := range st.Artifacts {
		meta := st.Meta[a.Name]
		res := longdesc.Check(meta.Description, meta.DescriptionContentType)
		for _, p := range res.Problems {
			key := p.Severity + ":" + p.Message
			if seen[key] {
				continue
			}
			seen[key] = true
			if p.Severity == longdesc.SeverityError {
				errMsgs = append(errMsgs, p.Message)
			} else {
				warnMsgs = append(warnMsgs, p.Message)
			}
		}
	}
	if len(errMsgs) > 0 {
		return newFatalStageError(StageVerify,
			errors.ValidationError("long description failed validation").
				WithContext("problems", strings.Join(errMsgs, "; ")).
				UserAction().
				Build())
	}
	if len(warnMsgs) > 0 {
		for _, w := range warnMsgs {
			slog.Warn("Description check", slog.String("problem", w))
		}
		verr := errors.ValidationError("long description has warnings").
			WithContext("problems", strings.Join(warnMsgs, "; ")).
			UserAction().
			Build()
		if strict {
			return newFatalStageError(StageVerify, verr)
		}
		return newWarnStageError(StageVerify, verr)
	}
	return nil
}

// stageUpload publishes every collected distribution to the resolved
// repository. The first failure aborts the remaining uploads; files already
// published stay published, local files are never touched.
func stageUpload(ctx context.Context, st *State) error {
	repo, err := st.Config.ResolveRepository(st.Options.Repository)
	if err != nil {
		return newFatalStageError(StageUpload, err)
	}
	st.Report.Repository = repo.Name

	client := index.NewClient(repo, &http.Client{Timeout: st.Config.Upload.TimeoutDuration()})
	client.SetSkipExisting(st.Config.Upload.SkipExisting || st.Options.SkipExisting)

	for _, a := range st.Artifacts {
		t0 := time.Now()
		res, err := client.Upload(ctx, a, st.Meta[a.Name])
		dur := time.Since(t0)
		if res == nil {
			res = &index.UploadResult{Artifact: a.Name}
		}
		st.Observer.OnUploadComplete(repo.Name, *res, dur, err)
		if err != nil {
			return newFatalStageError(StageUpload, err)
		}
		st.Results = append(st.Results, *res)
		if res.Status == index.StatusSkipped {
			st.Report.SkippedUploads++
		} else {
			st.Report.Uploaded++
		}
	}
	return nil
}
