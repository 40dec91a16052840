package commands

import (
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// ReleaseCmd runs the full release: clean, build, verify, upload.
type ReleaseCmd struct {
	Repository   string `short:"r" help:"Upload repository name, overrides the configured one"`
	SkipExisting bool   `name:"skip-existing" help:"Treat already-uploaded files as success"`
	DryRun       bool   `name:"dry-run" help:"Run everything except the upload"`
	Strict       bool   `help:"Escalate verification warnings to errors"`
}

func (r *ReleaseCmd) Run(_ *Global, root *CLI) error {
	opts := pipeline.Options{
		Repository:   r.Repository,
		SkipExisting: r.SkipExisting,
		Strict:       r.Strict,
	}
	stages := pipeline.ReleaseStages()
	if r.DryRun {
		stages = pipeline.BuildStages()
	}
	return runPipeline(root, opts, stages)
}
