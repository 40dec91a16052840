package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/felloworks/wheelwright/internal/errors"
)

// pyprojectFile mirrors the tables wheelwright reads from pyproject.toml.
type pyprojectFile struct {
	Project     rawProject     `toml:"project"`
	BuildSystem rawBuildSystem `toml:"build-system"`
}

type rawProject struct {
	Name           string            `toml:"name"`
	Version        string            `toml:"version"`
	Description    string            `toml:"description"`
	Readme         toml.Primitive    `toml:"readme"`
	RequiresPython string            `toml:"requires-python"`
	License        toml.Primitive    `toml:"license"`
	Authors        []person          `toml:"authors"`
	Maintainers    []person          `toml:"maintainers"`
	Keywords       []string          `toml:"keywords"`
	Classifiers    []string          `toml:"classifiers"`
	Dependencies   []string          `toml:"dependencies"`
	Dynamic        []string          `toml:"dynamic"`
	URLs           map[string]string `toml:"urls"`
}

type person struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type rawBuildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

// readmeTable is the table form of [project].readme.
type readmeTable struct {
	File        string `toml:"file"`
	Text        string `toml:"text"`
	ContentType string `toml:"content-type"`
}

// licenseTable is the table form of [project].license.
type licenseTable struct {
	File string `toml:"file"`
	Text string `toml:"text"`
}

func readPyproject(path string) (Metadata, error) {
	var raw pyprojectFile
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Metadata{}, errors.WrapError(err, errors.CategoryValidation, "parsing pyproject.toml").
			WithContext("path", path).
			Build()
	}

	// Projects predating PEP 621 carry only [tool.*] tables; metadata then
	// lives in setup.py/setup.cfg and stays empty here.
	if !md.IsDefined("project") {
		return Metadata{}, nil
	}

	meta := Metadata{
		Name:           strings.TrimSpace(raw.Project.Name),
		Version:        strings.TrimSpace(raw.Project.Version),
		Summary:        strings.TrimSpace(raw.Project.Description),
		RequiresPython: strings.TrimSpace(raw.Project.RequiresPython),
		Keywords:       raw.Project.Keywords,
		Classifiers:    raw.Project.Classifiers,
		Requires:       raw.Project.Dependencies,
		URLs:           raw.Project.URLs,
		Dynamic:        raw.Project.Dynamic,
	}

	if meta.Name == "" {
		return Metadata{}, errors.ValidationError("pyproject.toml [project] table has no name").
			WithContext("path", path).
			Build()
	}

	if len(raw.Project.Authors) > 0 {
		meta.Author = raw.Project.Authors[0].Name
		meta.AuthorEmail = raw.Project.Authors[0].Email
	}

	if md.IsDefined("project", "readme") {
		text, contentType, err := decodeReadme(md, raw.Project.Readme, filepath.Dir(path))
		if err != nil {
			return Metadata{}, err
		}
		meta.Description = text
		meta.DescriptionContentType = contentType
	}

	if md.IsDefined("project", "license") {
		lic, err := decodeLicense(md, raw.Project.License, filepath.Dir(path))
		if err != nil {
			return Metadata{}, err
		}
		meta.License = lic
	}

	return meta, nil
}

// decodeReadme handles both spellings of [project].readme: a bare path
// string, or a table with file/text plus content-type.
func decodeReadme(md toml.MetaData, prim toml.Primitive, root string) (string, string, error) {
	var path string
	if err := md.PrimitiveDecode(prim, &path); err == nil {
		text, err := readProjectFile(root, path)
		if err != nil {
			return "", "", err
		}
		return text, contentTypeForReadme(path), nil
	}

	var table readmeTable
	if err := md.PrimitiveDecode(prim, &table); err != nil {
		return "", "", errors.ValidationError("pyproject.toml readme must be a string or table").Build()
	}

	contentType := table.ContentType
	if table.Text != "" {
		return table.Text, contentType, nil
	}
	if table.File == "" {
		return "", "", errors.ValidationError("pyproject.toml readme table needs file or text").Build()
	}
	text, err := readProjectFile(root, table.File)
	if err != nil {
		return "", "", err
	}
	if contentType == "" {
		contentType = contentTypeForReadme(table.File)
	}
	return text, contentType, nil
}

// decodeLicense handles both spellings of [project].license: an SPDX
// expression string, or the older table with text/file.
func decodeLicense(md toml.MetaData, prim toml.Primitive, root string) (string, error) {
	var expr string
	if err := md.PrimitiveDecode(prim, &expr); err == nil {
		return strings.TrimSpace(expr), nil
	}

	var table licenseTable
	if err := md.PrimitiveDecode(prim, &table); err != nil {
		return "", errors.ValidationError("pyproject.toml license must be a string or table").Build()
	}
	if table.Text != "" {
		return strings.TrimSpace(table.Text), nil
	}
	if table.File != "" {
		text, err := readProjectFile(root, table.File)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}
	return "", nil
}

func readProjectFile(root, rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("reading %s referenced by pyproject.toml", rel)).
			Build()
	}
	return string(data), nil
}

func contentTypeForReadme(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".rst":
		return "text/x-rst"
	default:
		return "text/plain"
	}
}
