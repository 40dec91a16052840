// Package buildtool invokes the external Python build tool that produces
// sdist and wheel distributions. wheelwright never builds distributions
// itself; this package's subprocess is the only producer.
package buildtool

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/felloworks/wheelwright/internal/errors"
)

// ToolMode selects which build invocation is used.
type ToolMode string

const (
	// ToolAuto picks ToolBuild when the project has a pyproject.toml and
	// ToolSetup otherwise.
	ToolAuto ToolMode = "auto"
	// ToolBuild runs the PyPA build frontend: python -m build.
	ToolBuild ToolMode = "build"
	// ToolSetup runs the legacy invocation: python setup.py sdist bdist_wheel.
	ToolSetup ToolMode = "setup"
)

// Valid reports whether m is a known mode.
func (m ToolMode) Valid() bool {
	switch m {
	case ToolAuto, ToolBuild, ToolSetup:
		return true
	}
	return false
}

// ExitError carries the build tool's exit status so the CLI can terminate
// with the same code the tool returned.
type ExitError struct {
	Tool string
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the subprocess exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Runner configures and executes one build tool invocation.
type Runner struct {
	Python       string // interpreter binary, default python3
	Mode         ToolMode
	Dir          string // project root the tool runs in
	DistDir      string // relative distribution output directory
	PythonPath   string // prepended to the subprocess PYTHONPATH
	HasPyproject bool
	Env          []string // base environment; nil means the current process env
	Stdout       io.Writer
	Stderr       io.Writer
}

func (r *Runner) python() string {
	if r.Python == "" {
		return "python3"
	}
	return r.Python
}

func (r *Runner) distDir() string {
	if r.DistDir == "" {
		return "dist"
	}
	return r.DistDir
}

func (r *Runner) resolveMode() ToolMode {
	if r.Mode != ToolAuto && r.Mode != "" {
		return r.Mode
	}
	if r.HasPyproject {
		return ToolBuild
	}
	return ToolSetup
}

// Args returns the argv (after the interpreter) for the resolved mode.
func (r *Runner) Args() []string {
	if r.resolveMode() == ToolBuild {
		return []string{"-m", "build", "--sdist", "--wheel", "--outdir", r.distDir()}
	}
	args := []string{"setup.py", "sdist", "bdist_wheel"}
	if r.distDir() != "dist" {
		args = []string{"setup.py", "sdist", "--dist-dir", r.distDir(), "bdist_wheel", "--dist-dir", r.distDir()}
	}
	return args
}

// Command builds the exec.Cmd without starting it.
func (r *Runner) Command(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.python(), r.Args()...)
	cmd.Dir = r.Dir
	cmd.Env = r.buildEnv()
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return cmd
}

// buildEnv merges the configured module search path into the inherited
// environment. An existing PYTHONPATH keeps its entries after ours.
func (r *Runner) buildEnv() []string {
	base := r.Env
	if base == nil {
		base = os.Environ()
	}
	if r.PythonPath == "" {
		return base
	}

	env := make([]string, 0, len(base)+1)
	merged := false
	for _, kv := range base {
		if v, ok := strings.CutPrefix(kv, "PYTHONPATH="); ok {
			if v == "" {
				env = append(env, "PYTHONPATH="+r.PythonPath)
			} else {
				env = append(env, "PYTHONPATH="+r.PythonPath+string(os.PathListSeparator)+v)
			}
			merged = true
			continue
		}
		env = append(env, kv)
	}
	if !merged {
		env = append(env, "PYTHONPATH="+r.PythonPath)
	}
	return env
}

// Run executes the build tool, streaming its raw output. A tool failure
// comes back as an ExitError carrying the subprocess exit status.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := exec.LookPath(r.python()); err != nil {
		return errors.ConfigError(fmt.Sprintf("python interpreter %q not found in PATH", r.python())).
			UserAction().
			WithCause(err).
			Build()
	}

	cmd := r.Command(ctx)
	slog.Info("Running build tool",
		slog.String("command", r.python()+" "+strings.Join(r.Args(), " ")),
		slog.String("dir", r.Dir))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ee *exec.ExitError
		if stderrors.As(err, &ee) {
			return &ExitError{
				Tool: r.toolName(),
				Code: ee.ExitCode(),
				Err:  err,
			}
		}
		return fmt.Errorf("build tool failed to start: %w", err)
	}
	return nil
}

func (r *Runner) toolName() string {
	if r.resolveMode() == ToolBuild {
		return r.python() + " -m build"
	}
	return r.python() + " setup.py"
}
