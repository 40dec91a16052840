package commands

import (
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// UploadCmd uploads an already-built distribution directory.
type UploadCmd struct {
	Repository   string `short:"r" help:"Upload repository name, overrides the configured one"`
	SkipExisting bool   `name:"skip-existing" help:"Treat already-uploaded files as success"`
	Strict       bool   `help:"Escalate verification warnings to errors"`
}

func (u *UploadCmd) Run(_ *Global, root *CLI) error {
	opts := pipeline.Options{
		Repository:   u.Repository,
		SkipExisting: u.SkipExisting,
		Strict:       u.Strict,
	}
	return runPipeline(root, opts, pipeline.UploadStages())
}
