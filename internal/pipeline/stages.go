// Package pipeline runs the release procedure as an ordered list of stages
// with per-stage timing, error classification, and a persisted report.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// StageName identifies a pipeline stage.
type StageName string

const (
	StageClean       StageName = "clean"
	StageMetadata    StageName = "metadata"
	StageHooksBefore StageName = "hooks_before"
	StageBuild       StageName = "build"
	StageCollect     StageName = "collect"
	StageVerify      StageName = "verify"
	StageHooksAfter  StageName = "hooks_after"
	StageUpload      StageName = "upload"
)

// Stage is a discrete unit of work in the release.
type Stage func(ctx context.Context, st *State) error

// StageDef pairs a stage with its name for ordered execution.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Release must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled error. Warnings are recorded and execution
// continues with the next stage.
func runStages(ctx context.Context, st *State, stages []StageDef) error {
	for _, def := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(def.Name, ctx.Err())
			st.Report.Errors = append(st.Report.Errors, se)
			st.Report.StageResults[def.Name] = ResultCanceled
			return se
		default:
		}

		st.Observer.OnStageStart(def.Name)
		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)
		st.Report.StageDurations[def.Name] = dur

		if err == nil {
			st.Report.StageResults[def.Name] = ResultSuccess
			st.Observer.OnStageComplete(def.Name, dur, ResultSuccess)
			continue
		}

		var se *StageError
		if !stderrors.As(err, &se) {
			if ctx.Err() != nil {
				se = newCanceledStageError(def.Name, err)
			} else {
				// Wrap unknown errors as fatal by default.
				se = newFatalStageError(def.Name, err)
			}
		}

		switch se.Kind {
		case StageErrorWarning:
			st.Report.StageResults[def.Name] = ResultWarning
			st.Report.Warnings = append(st.Report.Warnings, se)
			st.Observer.OnStageComplete(def.Name, dur, ResultWarning)
			continue
		case StageErrorCanceled:
			st.Report.StageResults[def.Name] = ResultCanceled
			st.Report.Errors = append(st.Report.Errors, se)
			st.Observer.OnStageComplete(def.Name, dur, ResultCanceled)
			return se
		default:
			st.Report.StageResults[def.Name] = ResultFatal
			st.Report.Errors = append(st.Report.Errors, se)
			st.Observer.OnStageComplete(def.Name, dur, ResultFatal)
			return se
		}
	}
	return nil
}

// ReleaseStages is the full procedure: cleanup, build, verify, upload.
// Metadata runs first so a dirty worktree fails the release before anything
// is deleted, and so cleanup knows the exact egg-info directory name.
func ReleaseStages() []StageDef {
	return []StageDef{
		{StageMetadata, stageMetadata},
		{StageClean, stageClean},
		{StageHooksBefore, stageHooksBefore},
		{StageBuild, stageBuild},
		{StageCollect, stageCollect},
		{StageVerify, stageVerify},
		{StageHooksAfter, stageHooksAfter},
		{StageUpload, stageUpload},
	}
}

// BuildStages stops before upload. Also used by release --dry-run.
func BuildStages() []StageDef {
	all := ReleaseStages()
	return all[:len(all)-1]
}

// UploadStages publishes an existing distribution directory.
func UploadStages() []StageDef {
	return []StageDef{
		{StageCollect, stageCollect},
		{StageVerify, stageVerify},
		{StageUpload, stageUpload},
	}
}

// CheckStages verifies an existing distribution directory without uploading.
func CheckStages() []StageDef {
	return []StageDef{
		{StageCollect, stageCollect},
		{StageVerify, stageVerify},
	}
}

// CleanStages is cleanup alone, with metadata first for the egg-info name.
func CleanStages() []StageDef {
	return []StageDef{
		{StageMetadata, stageMetadata},
		{StageClean, stageClean},
	}
}
