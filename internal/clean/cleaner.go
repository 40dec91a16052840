// Package clean removes stale build artifacts from a project tree before a
// fresh distribution build.
package clean

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/felloworks/wheelwright/internal/logfields"
)

// BuildDir is the scratch directory setuptools and the build frontend
// write into during a build.
const BuildDir = "build"

// Cleaner removes the three artifact directories a previous build may have
// left behind: build/, the distribution output directory, and the
// setuptools metadata directory.
type Cleaner struct {
	root    string
	distDir string
	eggInfo string // metadata dir name when the project name is known
}

// New creates a Cleaner for a project root. distDir is the relative
// distribution output directory, eggInfo the metadata directory name or ""
// when the project name is unknown (every top-level *.egg-info is removed
// then).
func New(root, distDir, eggInfo string) *Cleaner {
	if distDir == "" {
		distDir = "dist"
	}
	return &Cleaner{root: root, distDir: distDir, eggInfo: eggInfo}
}

// Targets returns the relative paths the next Clean call would remove.
func (c *Cleaner) Targets() ([]string, error) {
	for _, rel := range []string{c.distDir, c.eggInfo} {
		if rel != "" && !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("refusing to clean path outside project root: %s", rel)
		}
	}

	targets := []string{BuildDir, c.distDir}
	if c.eggInfo != "" {
		targets = append(targets, c.eggInfo)
		return targets, nil
	}

	matches, err := filepath.Glob(filepath.Join(c.root, "*.egg-info"))
	if err != nil {
		return nil, fmt.Errorf("globbing egg-info directories: %w", err)
	}
	for _, m := range matches {
		targets = append(targets, filepath.Base(m))
	}
	return targets, nil
}

// Clean removes the target directories. Absent targets are skipped
// silently, so running Clean twice in a row always succeeds.
func (c *Cleaner) Clean(ctx context.Context) error {
	targets, err := c.Targets()
	if err != nil {
		return err
	}

	for _, rel := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(c.root, rel)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Debug("Clean target already absent", logfields.Path(rel))
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("removing %s: %w", rel, err)
		}
		slog.Info("Removed stale artifacts", logfields.Path(rel))
	}
	return nil
}
