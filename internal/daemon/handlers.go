package daemon

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/eventstore"
	"github.com/felloworks/wheelwright/internal/logfields"
	"github.com/felloworks/wheelwright/internal/queue"
	"github.com/felloworks/wheelwright/internal/version"
)

// healthResponse is the payload for GET /healthz.
type healthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Uptime       float64   `json:"uptime_seconds"`
	DaemonStatus string    `json:"daemon_status"`
}

// statusResponse is the payload for GET /api/status.
type statusResponse struct {
	Status      string                     `json:"status"`
	Version     string                     `json:"version"`
	Uptime      string                     `json:"uptime"`
	QueueLength int                        `json:"queue_length"`
	ActiveJobs  []*queue.ReleaseJob        `json:"active_jobs"`
	Schedule    string                     `json:"schedule,omitempty"`
	Interval    string                     `json:"interval,omitempty"`
	Repository  string                     `json:"repository"`
	LastRelease *eventstore.ReleaseSummary `json:"last_release,omitempty"`
	Timestamp   time.Time                  `json:"timestamp"`
}

// triggerReleaseRequest is the optional JSON body for POST /api/release.
type triggerReleaseRequest struct {
	Repository string `json:"repository,omitempty"`
	Type       string `json:"type,omitempty"` // manual (default) or api
}

// triggerResponse is the payload for POST /api/release.
type triggerResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// releasesResponse is the payload for GET /api/releases.
type releasesResponse struct {
	Releases  []*eventstore.ReleaseSummary `json:"releases"`
	Count     int                          `json:"count"`
	Timestamp time.Time                    `json:"timestamp"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := errors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	health := &healthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC(),
		Version:      version.Version,
		Uptime:       time.Since(s.daemon.GetStartTime()).Seconds(),
		DaemonStatus: string(s.daemon.GetStatus()),
	}

	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write health response").Build()
		s.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := errors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	cfg := s.daemon.GetConfig()
	resp := &statusResponse{
		Status:      string(s.daemon.GetStatus()),
		Version:     version.Version,
		Uptime:      time.Since(s.daemon.GetStartTime()).Truncate(time.Second).String(),
		QueueLength: s.daemon.GetQueueLength(),
		ActiveJobs:  s.daemon.GetActiveJobs(),
		Repository:  cfg.Upload.Repository,
		Timestamp:   time.Now().UTC(),
	}
	if cfg.Daemon != nil {
		resp.Schedule = cfg.Daemon.Schedule
		resp.Interval = cfg.Daemon.Interval
	}
	if p := s.daemon.Projection(); p != nil {
		resp.LastRelease = p.GetLastCompletedRelease()
	}

	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to write status response").Build()
		s.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

func (s *HTTPServer) handleTriggerRelease(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		err := errors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "POST").
			Build()
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	var req triggerReleaseRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			verr := errors.ValidationError("invalid request body").WithCause(err).Build()
			s.errorAdapter.WriteErrorResponse(w, r, verr)
			return
		}
	}

	relType := queue.ReleaseTypeManual
	switch req.Type {
	case "", string(queue.ReleaseTypeManual):
	case string(queue.ReleaseTypeAPI):
		relType = queue.ReleaseTypeAPI
	default:
		verr := errors.ValidationError("unknown release type").
			WithContext("type", req.Type).
			Build()
		s.errorAdapter.WriteErrorResponse(w, r, verr)
		return
	}

	jobID, err := s.daemon.TriggerRelease(relType, req.Repository)
	if err != nil {
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	resp := &triggerResponse{Status: "queued", JobID: jobID}
	if err := writeJSON(w, http.StatusAccepted, resp); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to encode trigger response").Build()
		s.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

func (s *HTTPServer) handleReleases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := errors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr := errors.ValidationError("limit must be a positive integer").
				WithContext("limit", raw).
				Build()
			s.errorAdapter.WriteErrorResponse(w, r, verr)
			return
		}
		limit = n
	}

	releases := []*eventstore.ReleaseSummary{}
	if p := s.daemon.Projection(); p != nil {
		releases = p.GetHistory()
		if len(releases) > limit {
			releases = releases[:limit]
		}
	}

	resp := &releasesResponse{
		Releases:  releases,
		Count:     len(releases),
		Timestamp: time.Now().UTC(),
	}
	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		internalErr := errors.WrapError(err, errors.CategoryInternal, "failed to encode release history").Build()
		s.errorAdapter.WriteErrorResponse(w, r, internalErr)
	}
}

// writeJSON serializes v into an intermediate buffer first so a failed encode
// never produces a partial response body.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("failed writing JSON response body", logfields.Error(err))
		return err
	}
	return nil
}

// writeJSONPretty pretty prints when the pretty=1 query parameter is set,
// falling back to compact form if indented marshalling fails.
func writeJSONPretty(w http.ResponseWriter, r *http.Request, status int, v any) error {
	if r != nil {
		if p := r.URL.Query().Get("pretty"); p == "1" || p == "true" {
			b, err := json.MarshalIndent(v, "", "  ")
			if err == nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(status)
				if _, werr := w.Write(append(b, '\n')); werr != nil {
					slog.Error("failed writing pretty JSON", logfields.Error(werr))
					return werr
				}
				return nil
			}
			slog.Warn("pretty JSON marshal failed, falling back to standard encode", logfields.Error(err))
		}
	}
	return writeJSON(w, status, v)
}
