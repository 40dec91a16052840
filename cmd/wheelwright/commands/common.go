package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/events"
	"github.com/felloworks/wheelwright/internal/eventstore"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/pipeline"
)

// Global context passed to subcommands if we need to share global state later.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"wheelwright.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Release ReleaseCmd `cmd:"" help:"Clean, build, verify, and upload the distribution"`
	Build   BuildCmd   `cmd:"" help:"Clean and build the distribution without uploading"`
	Clean   CleanCmd   `cmd:"" help:"Remove build, dist, and egg-info directories"`
	Upload  UploadCmd  `cmd:"" help:"Upload an existing distribution directory"`
	Check   CheckCmd   `cmd:"" help:"Verify an existing distribution directory"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	History HistoryCmd `cmd:"" help:"List recent releases"`
	Daemon  DaemonCmd  `cmd:"" help:"Run the continuous release daemon"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// runPipeline loads the configuration and executes the given stage list,
// printing the final report. The stage error propagates so the exit code can
// carry the failing tool's status.
func runPipeline(root *CLI, opts pipeline.Options, stages []pipeline.StageDef) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	observer, closeObserver := buildObserver(cfg)
	defer closeObserver()

	runner := &pipeline.Runner{
		Config:   cfg,
		Options:  opts,
		Observer: observer,
		Stages:   stages,
	}

	rep, err := runner.Run(context.Background())
	printReport(rep)
	return err
}

// buildObserver wires history recording and optional event publishing for a
// one-shot run. Failures leave the run unobserved but never block it.
func buildObserver(cfg *config.Config) (pipeline.Observer, func()) {
	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		slog.Warn("Release history disabled", logfields.Error(err))
		return pipeline.NoopObserver{}, func() {}
	}

	obs := eventstore.NewObserver(store, nil, "manual")

	var pub *events.Publisher
	if cfg.Events.NATSURL != "" {
		pub, err = events.NewPublisher(cfg.Events)
		if err != nil {
			slog.Warn("Event publishing disabled", logfields.Error(err))
		} else {
			obs.SetSink(pub)
		}
	}

	return obs, func() {
		if pub != nil {
			_ = pub.Close()
		}
		_ = store.Close()
	}
}

// printReport emits the user-facing run summary on stdout.
func printReport(rep *pipeline.Report) {
	if rep == nil {
		return
	}
	for _, art := range rep.Artifacts {
		fmt.Printf("  %s (%s, %d bytes)\n", art.Name, art.Kind, art.Size)
	}
	fmt.Println(rep.Summary())
}
