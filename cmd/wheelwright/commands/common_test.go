package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/pipeline"
)

func newTestParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli, kong.Name("wheelwright"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	return parser
}

func TestCLIGrammar(t *testing.T) {
	t.Run("release flags", func(t *testing.T) {
		cli := &CLI{}
		ctx, err := newTestParser(t, cli).Parse([]string{"release", "--dry-run", "-r", "testpypi", "--skip-existing"})
		require.NoError(t, err)
		require.Equal(t, "release", ctx.Command())
		require.True(t, cli.Release.DryRun)
		require.True(t, cli.Release.SkipExisting)
		require.Equal(t, "testpypi", cli.Release.Repository)
		require.Equal(t, "wheelwright.yaml", cli.Config)
	})

	t.Run("history limit", func(t *testing.T) {
		cli := &CLI{}
		_, err := newTestParser(t, cli).Parse([]string{"history", "-n", "5"})
		require.NoError(t, err)
		require.Equal(t, 5, cli.History.Limit)
	})

	t.Run("history default limit", func(t *testing.T) {
		cli := &CLI{}
		_, err := newTestParser(t, cli).Parse([]string{"history"})
		require.NoError(t, err)
		require.Equal(t, 10, cli.History.Limit)
	})

	t.Run("global flags before command", func(t *testing.T) {
		cli := &CLI{}
		_, err := newTestParser(t, cli).Parse([]string{"-c", "custom.yaml", "build", "--strict"})
		require.NoError(t, err)
		require.Equal(t, "custom.yaml", cli.Config)
		require.True(t, cli.Build.Strict)
	})

	t.Run("unknown command", func(t *testing.T) {
		cli := &CLI{}
		_, err := newTestParser(t, cli).Parse([]string{"publish"})
		require.Error(t, err)
	})
}

func TestRunPipelineMissingConfig(t *testing.T) {
	root := &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")}
	err := runPipeline(root, pipeline.Options{}, pipeline.CleanStages())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestCleanCommandRemovesBuildOutput(t *testing.T) {
	dir := t.TempDir()
	pyproject := "[project]\nname = \"demo\"\nversion = \"1.0.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pyproject.toml"), []byte(pyproject), 0o644))
	for _, sub := range []string{"build", "dist", "demo.egg-info"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, sub, "marker"), []byte("x"), 0o644))
	}

	cfgPath := filepath.Join(dir, "wheelwright.yaml")
	cfgYAML := fmt.Sprintf("project:\n  path: %s\n", dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	require.NoError(t, (&CleanCmd{}).Run(&Global{}, &CLI{Config: cfgPath}))

	for _, sub := range []string{"build", "dist", "demo.egg-info"} {
		require.NoDirExists(t, filepath.Join(dir, sub))
	}
	require.FileExists(t, filepath.Join(dir, "pyproject.toml"))
}

func TestBuildObserverRecordsToProjectStateDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Project.Path = dir

	obs, closeObserver := buildObserver(cfg)
	defer closeObserver()

	_, isNoop := obs.(pipeline.NoopObserver)
	require.False(t, isNoop)
	require.FileExists(t, filepath.Join(dir, ".wheelwright", "history.db"))
}

func TestBuildObserverFallsBackToNoop(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := config.Default()
	cfg.Project.Path = dir
	// Parent of the database path is a regular file, so the store cannot open.
	cfg.History.Path = filepath.Join(blocker, "history.db")

	obs, closeObserver := buildObserver(cfg)
	defer closeObserver()

	require.IsType(t, pipeline.NoopObserver{}, obs)
}
