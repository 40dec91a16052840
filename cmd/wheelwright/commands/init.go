package commands

import (
	"fmt"
	"path/filepath"

	"github.com/felloworks/wheelwright/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing configuration file"`
	Output string `short:"o" name:"output" help:"Output directory for the generated config file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	// If the user specified an output directory, place the config there as "wheelwright.yaml".
	if i.Output != "" {
		cfgPath := filepath.Join(i.Output, "wheelwright.yaml")
		return RunInit(cfgPath, i.Force)
	}
	return RunInit(root.Config, i.Force)
}

func RunInit(configPath string, force bool) error {
	// Friendly user-facing messages on stdout for CLI integration tests.
	fmt.Println("Initializing wheelwright project")
	fmt.Printf("Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		fmt.Println("Initialization failed")
		return err
	}
	fmt.Println("initialized successfully")
	return nil
}
