// Package project reads Python project metadata from a source tree.
//
// Modern projects declare static metadata in pyproject.toml (PEP 621).
// Legacy setup.py projects expose nothing statically; for those only the
// layout flags are filled and callers fall back to artifact-embedded
// metadata after a build.
package project

import (
	"os"
	"path/filepath"

	"github.com/felloworks/wheelwright/internal/errors"
)

// Metadata is the subset of Python core metadata wheelwright works with.
type Metadata struct {
	Name                   string
	Version                string
	Summary                string
	Description            string
	DescriptionContentType string
	Author                 string
	AuthorEmail            string
	License                string
	RequiresPython         string
	Keywords               []string
	Classifiers            []string
	Requires               []string
	URLs                   map[string]string
	Dynamic                []string
}

// Project is a probed Python project directory.
type Project struct {
	Root         string
	Meta         Metadata
	HasPyproject bool
	HasSetupPy   bool
	HasSetupCfg  bool
}

// Load probes root for a Python project and reads whatever static metadata
// is available.
func Load(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "resolving project root").
			WithContext("path", root).
			Build()
	}

	p := &Project{
		Root:         abs,
		HasPyproject: fileExists(filepath.Join(abs, "pyproject.toml")),
		HasSetupPy:   fileExists(filepath.Join(abs, "setup.py")),
		HasSetupCfg:  fileExists(filepath.Join(abs, "setup.cfg")),
	}

	if !p.HasPyproject && !p.HasSetupPy {
		return nil, errors.ValidationError("not a Python project: no pyproject.toml or setup.py").
			WithContext("path", abs).
			Build()
	}

	if p.HasPyproject {
		meta, err := readPyproject(filepath.Join(abs, "pyproject.toml"))
		if err != nil {
			return nil, err
		}
		p.Meta = meta
	}

	return p, nil
}

// IsDynamic reports whether the named metadata field is declared dynamic
// in pyproject.toml.
func (p *Project) IsDynamic(field string) bool {
	for _, d := range p.Meta.Dynamic {
		if d == field {
			return true
		}
	}
	return false
}

// EggInfo returns the project's setuptools metadata directory name, or ""
// when the project name is unknown.
func (p *Project) EggInfo() string {
	if p.Meta.Name == "" {
		return ""
	}
	return EggInfoDir(p.Meta.Name)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
