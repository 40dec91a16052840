// Package index uploads built distributions to a Python package index
// through the legacy upload API implemented by PyPI, TestPyPI, and
// devpi/Nexus/Artifactory style private indexes.
package index

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/felloworks/wheelwright/internal/artifact"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/version"
)

// ErrAlreadyExists reports that the index already holds a file with the
// same name. Released files are immutable on every index in common use,
// so this condition is permanent for a given filename.
var ErrAlreadyExists = stderrors.New("file already exists on the index")

// UploadStatus describes the outcome of a single file upload.
type UploadStatus string

const (
	StatusUploaded UploadStatus = "uploaded"
	StatusSkipped  UploadStatus = "skipped"
)

// UploadResult reports the outcome of uploading one artifact.
type UploadResult struct {
	Artifact        string
	Status          UploadStatus
	SkippedExisting bool
}

// Client uploads distribution files to a single repository target.
type Client struct {
	repo         Repository
	httpClient   *http.Client
	userAgent    string
	skipExisting bool
}

// NewClient creates a Client for the given repository. A nil httpClient
// gets a default with a 5 minute timeout; large wheels over slow links
// legitimately take minutes.
func NewClient(repo Repository, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		repo:       repo,
		httpClient: httpClient,
		userAgent:  "wheelwright/" + version.Version,
	}
}

// SetUserAgent overrides the User-Agent header sent with uploads.
func (c *Client) SetUserAgent(ua string) {
	c.userAgent = ua
}

// SetSkipExisting makes Upload treat an already-uploaded file as a
// logged skip instead of an error.
func (c *Client) SetSkipExisting(skip bool) {
	c.skipExisting = skip
}

// Repo returns the repository this client uploads to.
func (c *Client) Repo() Repository {
	return c.repo
}

// Upload sends one built distribution to the repository. The local file
// is only read, never moved or rewritten, so a failed upload leaves the
// dist directory exactly as the build produced it.
func (c *Client) Upload(ctx context.Context, art artifact.Artifact, meta artifact.CoreMetadata) (*UploadResult, error) {
	u, err := url.Parse(c.repo.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.ConfigError("invalid repository URL").
			WithCause(err).
			WithContext("repository", c.repo.Name).
			WithContext("url", c.repo.URL).
			Build()
	}

	body, contentType, err := uploadForm(art, meta)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return nil, errors.IndexError("failed to create upload request").
			WithCause(err).
			WithContext("url", u.String()).
			Build()
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)
	if c.repo.HasCredentials() {
		req.SetBasicAuth(c.repo.Username, c.repo.Password)
	}

	slog.Info("Uploading distribution",
		logfields.Artifact(art.Name),
		logfields.Repository(c.repo.Name))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError("failed to reach index").
			WithCause(err).
			WithContext("repository", c.repo.Name).
			WithContext("url", u.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.uploadError(resp, art)
	}

	slog.Info("Upload complete",
		logfields.Artifact(art.Name),
		logfields.Repository(c.repo.Name),
		slog.String("status", resp.Status))

	return &UploadResult{Artifact: art.Name, Status: StatusUploaded}, nil
}

// uploadError maps an error response to a classified error, or to a
// skip result when the file is already present and skipping is enabled.
func (c *Client) uploadError(resp *http.Response, art artifact.Artifact) (*UploadResult, error) {
	// Read limited body for diagnostics
	limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.AuthError("index rejected credentials").
			WithContext("repository", c.repo.Name).
			WithContext("status", resp.Status).
			WithContext("response", bodyStr).
			Build()

	case isAlreadyExists(resp.StatusCode, bodyStr):
		if c.skipExisting {
			slog.Info("File already on index, skipping",
				logfields.Artifact(art.Name),
				logfields.Repository(c.repo.Name))
			return &UploadResult{Artifact: art.Name, Status: StatusSkipped, SkippedExisting: true}, nil
		}
		return nil, errors.NewError(errors.CategoryAlreadyExists, fmt.Sprintf("%s was already uploaded", art.Name)).
			WithCause(ErrAlreadyExists).
			WithRetry(errors.RetryUserAction).
			WithContext("repository", c.repo.Name).
			WithContext("status", resp.Status).
			Build()

	case resp.StatusCode >= 500:
		return nil, errors.IndexError(fmt.Sprintf("index error: %s", resp.Status)).
			WithContext("repository", c.repo.Name).
			WithContext("status", resp.Status).
			WithContext("response", bodyStr).
			Build()

	default:
		return nil, errors.IndexError(fmt.Sprintf("index rejected upload: %s", resp.Status)).
			WithRetry(errors.RetryNever).
			WithContext("repository", c.repo.Name).
			WithContext("status", resp.Status).
			WithContext("response", bodyStr).
			Build()
	}
}

// isAlreadyExists matches the duplicate-file responses of the indexes
// in common use. Warehouse answers 400 with "File already exists",
// Nexus 400 with "updating asset", GitLab 400 with "already been
// taken", and Artifactory a plain 409.
func isAlreadyExists(status int, body string) bool {
	if status == http.StatusConflict {
		return true
	}
	if status != http.StatusBadRequest {
		return false
	}
	lower := strings.ToLower(body)
	for _, marker := range []string{"already exist", "updating asset", "already been taken"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// uploadForm builds the multipart body for the legacy upload API.
// Field names follow the API's convention, including the ":action"
// pseudo-field Warehouse still requires.
func uploadForm(art artifact.Artifact, meta artifact.CoreMetadata) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	required := [][2]string{
		{":action", "file_upload"},
		{"protocol_version", "1"},
		{"name", meta.Name},
		{"version", meta.Version},
		{"metadata_version", meta.MetadataVersion},
		{"filetype", art.Kind.FileType()},
		{"pyversion", art.PyTag},
		{"md5_digest", art.MD5},
		{"sha256_digest", art.SHA256},
		{"blake2_256_digest", art.Blake2b256},
	}
	for _, f := range required {
		if err := writeField(w, f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	optional := [][2]string{
		{"summary", meta.Summary},
		{"description", meta.Description},
		{"description_content_type", meta.DescriptionContentType},
		{"author", meta.Author},
		{"author_email", meta.AuthorEmail},
		{"license", meta.License},
		{"requires_python", meta.RequiresPython},
		{"keywords", meta.Keywords},
	}
	for _, f := range optional {
		if f[1] == "" {
			continue
		}
		if err := writeField(w, f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	for _, v := range meta.Classifiers {
		if err := writeField(w, "classifiers", v); err != nil {
			return nil, "", err
		}
	}
	for _, v := range meta.RequiresDist {
		if err := writeField(w, "requires_dist", v); err != nil {
			return nil, "", err
		}
	}
	for _, v := range meta.ProjectURLs {
		if err := writeField(w, "project_urls", v); err != nil {
			return nil, "", err
		}
	}

	part, err := w.CreateFormFile("content", art.Name)
	if err != nil {
		return nil, "", errors.InternalError("failed to encode upload form").
			WithCause(err).
			Build()
	}
	f, err := os.Open(art.Path)
	if err != nil {
		return nil, "", errors.ArtifactError("failed to open distribution for upload").
			WithCause(err).
			WithContext("path", art.Path).
			Build()
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", errors.ArtifactError("failed to read distribution").
			WithCause(err).
			WithContext("path", art.Path).
			Build()
	}

	if err := w.Close(); err != nil {
		return nil, "", errors.InternalError("failed to encode upload form").
			WithCause(err).
			Build()
	}
	return &buf, w.FormDataContentType(), nil
}

func writeField(w *multipart.Writer, name, value string) error {
	if err := w.WriteField(name, value); err != nil {
		return errors.InternalError("failed to encode upload form").
			WithCause(err).
			WithContext("field", name).
			Build()
	}
	return nil
}
