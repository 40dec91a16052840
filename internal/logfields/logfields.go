package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID       = "job_id"
	KeyJobType     = "job_type"
	KeyJobPriority = "job_priority"
	KeyJobStatus   = "job_status"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyReleaseID   = "release_id"
	KeyProject     = "project"
	KeyVersion     = "version"
	KeyArtifact    = "artifact"
	KeyKind        = "artifact_kind"
	KeyRepo        = "repository"
	KeyPath        = "path"
	KeyError       = "error"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func JobType(t string) slog.Attr      { return slog.String(KeyJobType, t) }
func JobPriority(p int) slog.Attr     { return slog.Int(KeyJobPriority, p) }
func JobStatus(s string) slog.Attr    { return slog.String(KeyJobStatus, s) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func ReleaseID(id string) slog.Attr   { return slog.String(KeyReleaseID, id) }
func Project(name string) slog.Attr   { return slog.String(KeyProject, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Artifact(name string) slog.Attr  { return slog.String(KeyArtifact, name) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// HTTP request fields for the daemon's admin server.
func Method(m string) slog.Attr     { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr     { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr { return slog.String(KeyRemoteAddr, a) }
