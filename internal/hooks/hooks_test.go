package hooks

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felloworks/wheelwright/internal/errors"
)

func TestRun_ExecutesInProjectDir(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := r.Run(context.Background(), "before_build", []string{"echo generated > marker.txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "marker.txt"))
	require.NoError(t, err)
	require.Equal(t, "generated\n", string(data))
}

func TestRun_ExtraEnvVisible(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{
		Dir:    dir,
		Env:    []string{"RELEASE_VERSION=1.0.1"},
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}

	err := r.Run(context.Background(), "before_build", []string{"echo $RELEASE_VERSION > version.txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "version.txt"))
	require.NoError(t, err)
	require.Equal(t, "1.0.1\n", string(data))
}

func TestRun_FailureStopsRemaining(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	err := r.Run(context.Background(), "after_build", []string{
		"exit 3",
		"echo unreachable > never.txt",
	})
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryHook))

	_, statErr := os.Stat(filepath.Join(dir, "never.txt"))
	require.True(t, os.IsNotExist(statErr), "snippets after a failure must not run")
}

func TestRun_ErrexitInsideSnippet(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	// With -e the false aborts the snippet before the echo.
	err := r.Run(context.Background(), "before_build", []string{"false\necho reached > reached.txt"})
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "reached.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_ParseError(t *testing.T) {
	r := &Runner{Dir: t.TempDir(), Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}
	err := r.Run(context.Background(), "before_build", []string{"if then ((("})
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryHook))
}

func TestRun_NoSnippets(t *testing.T) {
	r := &Runner{Dir: t.TempDir()}
	require.NoError(t, r.Run(context.Background(), "before_build", nil))
}
