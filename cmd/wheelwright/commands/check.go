package commands

import (
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// CheckCmd verifies an already-built distribution directory.
type CheckCmd struct {
	Strict bool `help:"Escalate verification warnings to errors"`
}

func (c *CheckCmd) Run(_ *Global, root *CLI) error {
	return runPipeline(root, pipeline.Options{Strict: c.Strict}, pipeline.CheckStages())
}
