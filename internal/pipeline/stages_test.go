package pipeline

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felloworks/wheelwright/internal/config"
)

func newTestState() *State {
	return &State{
		Config:   config.Default(),
		Report:   NewReport("rel-test"),
		Observer: NoopObserver{},
	}
}

// recordStage returns a stage that appends its name to calls and returns err.
func recordStage(name StageName, calls *[]string, err error) StageDef {
	return StageDef{Name: name, Fn: func(context.Context, *State) error {
		*calls = append(*calls, string(name))
		return err
	}}
}

type recordingObserver struct {
	NoopObserver
	events []string
}

func (r *recordingObserver) OnStageStart(stage StageName) {
	r.events = append(r.events, "start:"+string(stage))
}

func (r *recordingObserver) OnStageComplete(stage StageName, _ time.Duration, result ResultKind) {
	r.events = append(r.events, "complete:"+string(stage)+":"+string(result))
}

func TestRunStages_AllSucceed(t *testing.T) {
	st := newTestState()
	var calls []string
	stages := []StageDef{
		recordStage("one", &calls, nil),
		recordStage("two", &calls, nil),
		recordStage("three", &calls, nil),
	}

	err := runStages(context.Background(), st, stages)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, calls)

	for _, name := range []StageName{"one", "two", "three"} {
		assert.Contains(t, st.Report.StageDurations, name)
		assert.Equal(t, ResultSuccess, st.Report.StageResults[name])
	}
	st.Report.Finish()
	assert.Equal(t, OutcomeSuccess, st.Report.Outcome)
}

func TestRunStages_WarningContinues(t *testing.T) {
	st := newTestState()
	var calls []string
	warn := newWarnStageError("two", stderrors.New("description could be better"))
	stages := []StageDef{
		recordStage("one", &calls, nil),
		recordStage("two", &calls, warn),
		recordStage("three", &calls, nil),
	}

	err := runStages(context.Background(), st, stages)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, calls)
	assert.Len(t, st.Report.Warnings, 1)
	assert.Equal(t, ResultWarning, st.Report.StageResults["two"])

	st.Report.Finish()
	assert.Equal(t, OutcomeWarning, st.Report.Outcome)
}

func TestRunStages_FatalStops(t *testing.T) {
	st := newTestState()
	var calls []string
	boom := newFatalStageError("two", stderrors.New("boom"))
	stages := []StageDef{
		recordStage("one", &calls, nil),
		recordStage("two", &calls, boom),
		recordStage("three", &calls, nil),
	}

	err := runStages(context.Background(), st, stages)
	require.Error(t, err)
	assert.Equal(t, []string{"one", "two"}, calls, "stage three must not run after a fatal error")

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.Equal(t, StageName("two"), se.Stage)
	assert.Len(t, st.Report.Errors, 1)

	st.Report.Finish()
	assert.Equal(t, OutcomeFailed, st.Report.Outcome)
}

func TestRunStages_PlainErrorBecomesFatal(t *testing.T) {
	st := newTestState()
	var calls []string
	cause := stderrors.New("disk on fire")
	stages := []StageDef{recordStage("one", &calls, cause)}

	err := runStages(context.Background(), st, stages)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.ErrorIs(t, err, cause)
}

func TestRunStages_CancelBetweenStages(t *testing.T) {
	st := newTestState()
	ctx, cancel := context.WithCancel(context.Background())

	var calls []string
	stages := []StageDef{
		{Name: "one", Fn: func(context.Context, *State) error {
			calls = append(calls, "one")
			cancel()
			return nil
		}},
		recordStage("two", &calls, nil),
	}

	err := runStages(ctx, st, stages)
	require.Error(t, err)
	assert.Equal(t, []string{"one"}, calls)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Equal(t, StageName("two"), se.Stage)
	assert.NotContains(t, st.Report.StageDurations, StageName("two"),
		"a stage that never started must not record a duration")

	st.Report.Finish()
	assert.Equal(t, OutcomeCanceled, st.Report.Outcome)
}

func TestRunStages_CancelDuringStage(t *testing.T) {
	st := newTestState()
	ctx, cancel := context.WithCancel(context.Background())

	stages := []StageDef{
		{Name: "one", Fn: func(ctx context.Context, _ *State) error {
			cancel()
			return ctx.Err()
		}},
	}

	err := runStages(ctx, st, stages)
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Equal(t, ResultCanceled, st.Report.StageResults["one"])
}

func TestSameVersion(t *testing.T) {
	assert.True(t, sameVersion("1.0", "1.0.0"))
	assert.True(t, sameVersion("1.0.post1", "1.0-1"))
	assert.False(t, sameVersion("1.0", "1.0.1"))
	assert.True(t, sameVersion("not-a-version", "not-a-version"))
	assert.False(t, sameVersion("not-a-version", "1.0"))
}

func TestRunStages_ObserverSequence(t *testing.T) {
	st := newTestState()
	obs := &recordingObserver{}
	st.Observer = obs

	var calls []string
	stages := []StageDef{
		recordStage("one", &calls, nil),
		recordStage("two", &calls, newWarnStageError("two", stderrors.New("meh"))),
	}

	require.NoError(t, runStages(context.Background(), st, stages))
	assert.Equal(t, []string{
		"start:one", "complete:one:success",
		"start:two", "complete:two:warning",
	}, obs.events)
}
