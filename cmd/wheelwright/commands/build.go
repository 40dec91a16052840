package commands

import (
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// BuildCmd builds sdist and wheel without uploading.
type BuildCmd struct {
	Strict bool `help:"Escalate verification warnings to errors"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	return runPipeline(root, pipeline.Options{Strict: b.Strict}, pipeline.BuildStages())
}
