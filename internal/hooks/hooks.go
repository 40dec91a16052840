// Package hooks runs user-configured shell snippets before and after the
// distribution build.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/felloworks/wheelwright/internal/errors"
)

// Runner executes hook snippets in the project directory.
type Runner struct {
	Dir    string
	Env    []string // extra KEY=VALUE pairs on top of the process env
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes each snippet in order with `sh -e` semantics. Each snippet
// gets a fresh interpreter, so shell state does not leak between them.
// The first failure aborts the remaining snippets.
func (r *Runner) Run(ctx context.Context, phase string, snippets []string) error {
	if len(snippets) == 0 {
		return nil
	}

	stdout := r.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	env := append(os.Environ(), r.Env...)

	parser := syntax.NewParser()
	for i, src := range snippets {
		name := fmt.Sprintf("%s[%d]", phase, i)
		file, err := parser.Parse(strings.NewReader(src), name)
		if err != nil {
			return errors.HookError(fmt.Sprintf("parsing %s hook", phase)).
				WithCause(err).
				WithContext("hook", name).
				Build()
		}

		runner, err := interp.New(
			interp.Dir(r.Dir),
			interp.Env(expand.ListEnviron(env...)),
			interp.StdIO(nil, stdout, stderr),
			interp.Params("-e"),
		)
		if err != nil {
			return errors.InternalError("initializing hook interpreter").WithCause(err).Build()
		}

		slog.Debug("Running hook", slog.String("hook", name))
		if err := runner.Run(ctx, file); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if status, ok := interp.IsExitStatus(err); ok {
				return errors.HookError(fmt.Sprintf("%s hook exited with status %d", phase, status)).
					WithCause(err).
					WithContext("hook", name).
					Build()
			}
			return errors.HookError(fmt.Sprintf("%s hook failed", phase)).
				WithCause(err).
				WithContext("hook", name).
				Build()
		}
	}
	return nil
}
