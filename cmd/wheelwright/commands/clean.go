package commands

import (
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// CleanCmd removes previous build output.
type CleanCmd struct{}

func (c *CleanCmd) Run(_ *Global, root *CLI) error {
	return runPipeline(root, pipeline.Options{}, pipeline.CleanStages())
}
