package pipeline

import (
	"github.com/felloworks/wheelwright/internal/artifact"
	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/gitinfo"
	"github.com/felloworks/wheelwright/internal/index"
	"github.com/felloworks/wheelwright/internal/project"
)

// Options adjust a single pipeline run beyond what the config file says.
type Options struct {
	Repository   string // upload target override, empty uses config
	SkipExisting bool   // force skip-existing regardless of config
	Strict       bool   // escalate verify warnings to fatal
}

// State carries mutable state across stages. The runner constructs it; stages
// fill it in as the release progresses.
type State struct {
	Config  *config.Config
	Options Options
	Root    string // resolved project directory

	Project   *project.Project
	Git       gitinfo.Info
	Artifacts []artifact.Artifact
	Meta      map[string]artifact.CoreMetadata // keyed by artifact file name
	Skipped   []string                         // non-distribution files left alone in the dist dir
	Results   []index.UploadResult

	Report   *Report
	Observer Observer
}

// DistDir returns the distribution directory relative to the project root.
func (st *State) DistDir() string {
	return st.Config.Build.DistDir
}
