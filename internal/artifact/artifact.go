// Package artifact handles built Python distribution files: discovery in
// the dist directory, filename parsing, upload digests, and extraction of
// the embedded core metadata.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/pep440"
)

// Kind distinguishes the two distribution formats wheelwright publishes.
type Kind string

const (
	KindSdist Kind = "sdist"
	KindWheel Kind = "wheel"
)

// FileType returns the type name the upload API expects for this kind.
func (k Kind) FileType() string {
	if k == KindWheel {
		return "bdist_wheel"
	}
	return "sdist"
}

// Artifact is one distribution file found in the dist directory.
type Artifact struct {
	Path    string
	Name    string // base filename
	Kind    Kind
	Project string // distribution name as spelled in the filename
	Version string
	PyTag   string // "source" for sdists, the wheel's python tag otherwise
	Size    int64

	SHA256     string
	MD5        string
	Blake2b256 string
}

// WheelName is a parsed PEP 427 wheel filename.
type WheelName struct {
	Distribution string
	Version      string
	Build        string
	Python       string
	ABI          string
	Platform     string
}

// ParseWheelName parses a wheel filename of the form
// {distribution}-{version}(-{build})?-{python}-{abi}-{platform}.whl.
func ParseWheelName(name string) (WheelName, error) {
	base, ok := strings.CutSuffix(name, ".whl")
	if !ok {
		return WheelName{}, fmt.Errorf("not a wheel filename: %s", name)
	}

	parts := strings.Split(base, "-")
	switch len(parts) {
	case 5:
		return WheelName{
			Distribution: parts[0],
			Version:      parts[1],
			Python:       parts[2],
			ABI:          parts[3],
			Platform:     parts[4],
		}, nil
	case 6:
		return WheelName{
			Distribution: parts[0],
			Version:      parts[1],
			Build:        parts[2],
			Python:       parts[3],
			ABI:          parts[4],
			Platform:     parts[5],
		}, nil
	default:
		return WheelName{}, fmt.Errorf("malformed wheel filename: %s", name)
	}
}

// ParseSdistName splits an sdist filename into name and version. Both the
// modern {name}-{version}.tar.gz form and zip sdists are accepted; the
// version part must parse as PEP 440.
func ParseSdistName(name string) (string, string, error) {
	base := name
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if b, ok := strings.CutSuffix(base, ext); ok {
			base = b
			break
		}
	}
	if base == name {
		return "", "", fmt.Errorf("not an sdist filename: %s", name)
	}

	idx := strings.LastIndex(base, "-")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", fmt.Errorf("malformed sdist filename: %s", name)
	}
	dist, ver := base[:idx], base[idx+1:]
	if _, err := pep440.Parse(ver); err != nil {
		return "", "", fmt.Errorf("sdist filename has no parseable version: %s", name)
	}
	return dist, ver, nil
}

// Scan enumerates dir and returns the distribution artifacts in it, with
// digests computed, plus the names of files that were skipped because they
// are not recognizable distributions. Artifacts come back sorted by name.
func Scan(dir string) ([]Artifact, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.ArtifactError("distribution directory does not exist").
				WithContext("dir", dir).
				Build()
		}
		return nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "reading distribution directory").
			WithContext("dir", dir).
			Build()
	}

	var artifacts []Artifact
	var skipped []string
	for _, entry := range entries {
		if entry.IsDir() {
			skipped = append(skipped, entry.Name())
			continue
		}

		a, err := classify(dir, entry.Name())
		if err != nil {
			skipped = append(skipped, entry.Name())
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, nil, errors.WrapError(err, errors.CategoryFileSystem, "stat distribution file").
				WithContext("file", entry.Name()).
				Build()
		}
		a.Size = info.Size()

		if err := a.computeDigests(); err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, a)
	}

	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, skipped, nil
}

func classify(dir, name string) (Artifact, error) {
	path := filepath.Join(dir, name)

	if strings.HasSuffix(name, ".whl") {
		wn, err := ParseWheelName(name)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{
			Path:    path,
			Name:    name,
			Kind:    KindWheel,
			Project: wn.Distribution,
			Version: wn.Version,
			PyTag:   wn.Python,
		}, nil
	}

	dist, ver, err := ParseSdistName(name)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Path:    path,
		Name:    name,
		Kind:    KindSdist,
		Project: dist,
		Version: ver,
		PyTag:   "source",
	}, nil
}
