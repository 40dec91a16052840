package artifact

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"io"
	"net/textproto"
	"os"
	"strings"

	"github.com/felloworks/wheelwright/internal/errors"
)

// CoreMetadata is the Python core metadata embedded in a distribution:
// a wheel's *.dist-info/METADATA file or an sdist's PKG-INFO.
type CoreMetadata struct {
	MetadataVersion        string
	Name                   string
	Version                string
	Summary                string
	Description            string
	DescriptionContentType string
	Author                 string
	AuthorEmail            string
	License                string
	RequiresPython         string
	Keywords               string
	Classifiers            []string
	RequiresDist           []string
	ProjectURLs            []string
}

// ParseCoreMetadata parses the RFC 822 style metadata format. The long
// description may appear either as a Description header (older metadata
// versions) or as the message body after the blank line.
func ParseCoreMetadata(r io.Reader) (CoreMetadata, error) {
	tp := textproto.NewReader(bufio.NewReader(r))
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "parsing core metadata headers").
			Build()
	}

	meta := CoreMetadata{
		MetadataVersion:        hdr.Get("Metadata-Version"),
		Name:                   hdr.Get("Name"),
		Version:                hdr.Get("Version"),
		Summary:                hdr.Get("Summary"),
		Description:            hdr.Get("Description"),
		DescriptionContentType: hdr.Get("Description-Content-Type"),
		Author:                 hdr.Get("Author"),
		AuthorEmail:            hdr.Get("Author-Email"),
		License:                hdr.Get("License"),
		RequiresPython:         hdr.Get("Requires-Python"),
		Keywords:               hdr.Get("Keywords"),
		Classifiers:            hdr.Values("Classifier"),
		RequiresDist:           hdr.Values("Requires-Dist"),
		ProjectURLs:            hdr.Values("Project-Url"),
	}

	if meta.Description == "" {
		body, err := io.ReadAll(tp.R)
		if err != nil {
			return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "reading core metadata body").
				Build()
		}
		meta.Description = strings.TrimLeft(string(body), "\n")
	}

	if meta.Name == "" || meta.Version == "" {
		return CoreMetadata{}, errors.ArtifactError("core metadata is missing Name or Version").Build()
	}
	return meta, nil
}

// ExtractMetadata reads the embedded core metadata out of the artifact's
// archive.
func ExtractMetadata(a Artifact) (CoreMetadata, error) {
	switch {
	case a.Kind == KindWheel:
		return wheelMetadata(a)
	case strings.HasSuffix(a.Name, ".zip"):
		return zipSdistMetadata(a)
	default:
		return tarSdistMetadata(a)
	}
}

// wheelMetadata pulls {dist}-{version}.dist-info/METADATA from the wheel.
func wheelMetadata(a Artifact) (CoreMetadata, error) {
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "opening wheel").
			WithContext("file", a.Name).
			Build()
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".dist-info/METADATA") {
			continue
		}
		if strings.Count(f.Name, "/") != 1 {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "reading wheel METADATA").
				WithContext("file", a.Name).
				Build()
		}
		defer rc.Close()
		return ParseCoreMetadata(rc)
	}

	return CoreMetadata{}, errors.ArtifactError("wheel has no dist-info METADATA").
		WithContext("file", a.Name).
		Build()
}

// tarSdistMetadata pulls {name}-{version}/PKG-INFO from a tar.gz sdist.
func tarSdistMetadata(a Artifact) (CoreMetadata, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return CoreMetadata{}, errors.WrapError(err, errors.CategoryFileSystem, "opening sdist").
			WithContext("file", a.Name).
			Build()
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "sdist is not a valid gzip archive").
			WithContext("file", a.Name).
			Build()
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "sdist is not a valid tar archive").
				WithContext("file", a.Name).
				Build()
		}
		if isRootPkgInfo(hdr.Name) {
			return ParseCoreMetadata(tr)
		}
	}

	return CoreMetadata{}, errors.ArtifactError("sdist has no PKG-INFO").
		WithContext("file", a.Name).
		Build()
}

// zipSdistMetadata handles the older zip sdist format.
func zipSdistMetadata(a Artifact) (CoreMetadata, error) {
	zr, err := zip.OpenReader(a.Path)
	if err != nil {
		return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "sdist is not a valid zip archive").
			WithContext("file", a.Name).
			Build()
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !isRootPkgInfo(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return CoreMetadata{}, errors.WrapError(err, errors.CategoryArtifact, "reading sdist PKG-INFO").
				WithContext("file", a.Name).
				Build()
		}
		defer rc.Close()
		return ParseCoreMetadata(rc)
	}

	return CoreMetadata{}, errors.ArtifactError("sdist has no PKG-INFO").
		WithContext("file", a.Name).
		Build()
}

// isRootPkgInfo matches {root}/PKG-INFO exactly one level deep.
func isRootPkgInfo(name string) bool {
	name = strings.TrimPrefix(name, "./")
	return strings.HasSuffix(name, "/PKG-INFO") && strings.Count(name, "/") == 1
}
