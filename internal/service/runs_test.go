package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLifecycle(t *testing.T) {
	run := NewRun(2)
	assert.Len(t, run.ID(), 8)
	assert.Equal(t, RunStatusPending, run.Snapshot().Status)

	run.SetStage(StageSignals)
	run.Advance(false, "employee 1 chunk 0: timeout")
	run.Advance(true)

	snap := run.Snapshot()
	assert.Equal(t, RunStatusRunning, snap.Status)
	assert.Equal(t, StageSignals, snap.Stage)
	assert.Equal(t, 2, snap.Progress)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, []string{"employee 1 chunk 0: timeout"}, snap.Warnings)
	assert.Nil(t, snap.CompletedAt)

	run.Complete()
	snap = run.Snapshot()
	assert.Equal(t, RunStatusCompleted, snap.Status)
	assert.Empty(t, snap.Stage)
	assert.NotNil(t, snap.CompletedAt)
}

func TestRunFail(t *testing.T) {
	run := NewRun(1)
	run.Fail(errors.New("quota exceeded"))

	snap := run.Snapshot()
	assert.Equal(t, RunStatusFailed, snap.Status)
	assert.Equal(t, "quota exceeded", snap.Error)
	assert.NotNil(t, snap.CompletedAt)
}

func TestRunSnapshotIsACopy(t *testing.T) {
	run := NewRun(1)
	run.Advance(false, "first")

	snap := run.Snapshot()
	snap.Warnings[0] = "changed"

	assert.Equal(t, []string{"first"}, run.Snapshot().Warnings)
}
