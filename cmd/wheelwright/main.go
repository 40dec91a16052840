package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/felloworks/wheelwright/cmd/wheelwright/commands"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/version"
)

func main() {
	cli := &commands.CLI{}
	ctx := kong.Parse(cli,
		kong.Name("wheelwright"),
		kong.Description("Build and publish Python package distributions."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	if err := ctx.Run(&commands.Global{Logger: slog.Default()}, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
