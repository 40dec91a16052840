package project

import (
	"regexp"
	"strings"
)

var (
	normalizeRun = regexp.MustCompile(`[-_.]+`)
	unsafeRun    = regexp.MustCompile(`[^A-Za-z0-9.]+`)
)

// NormalizeName normalizes a distribution name per PEP 503: lowercase with
// runs of dots, hyphens, and underscores collapsed to a single hyphen.
// Index servers treat names equal under this normalization as the same
// project.
func NormalizeName(name string) string {
	return strings.ToLower(normalizeRun.ReplaceAllString(name, "-"))
}

// SafeName mirrors setuptools' safe_name: runs of characters outside
// [A-Za-z0-9.] become a single hyphen.
func SafeName(name string) string {
	return unsafeRun.ReplaceAllString(name, "-")
}

// EggInfoDir returns the metadata directory setuptools creates next to
// setup.py for the given project name, e.g. "my-pkg" -> "my_pkg.egg-info".
func EggInfoDir(name string) string {
	return strings.ReplaceAll(SafeName(name), "-", "_") + ".egg-info"
}
