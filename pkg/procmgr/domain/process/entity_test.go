// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcess(t *testing.T) *Process {
	t.Helper()
	cfg := DefaultConfig("/bin/sh")
	p, err := New("svc1", cfg)
	require.NoError(t, err)
	return p
}

func TestNewRejectsEmptyNameOrCommand(t *testing.T) {
	_, err := New("", DefaultConfig("/bin/sh"))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = New("has space", DefaultConfig("/bin/sh"))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = New("svc1", DefaultConfig(""))
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestLegalTransitionHappyPath(t *testing.T) {
	p := newTestProcess(t)
	require.NoError(t, p.MarkStarting())
	require.NoError(t, p.MarkRunning(123))
	assert.Equal(t, Running, p.State)
	require.NotNil(t, p.PID)
	assert.Equal(t, 123, *p.PID)

	require.NoError(t, p.MarkStopping())
	assert.Equal(t, Stopping, p.State)
	require.NotNil(t, p.PID, "pid stays set while Stopping")

	require.NoError(t, p.MarkStopped())
	assert.Equal(t, Stopped, p.State)
	assert.Nil(t, p.PID)
}

func TestIllegalTransitionIsRejected(t *testing.T) {
	p := newTestProcess(t)
	err := p.MarkRunning(1)
	var ist *InvalidStateTransitionError
	assert.ErrorAs(t, err, &ist)
	assert.Equal(t, Created, ist.From)
	assert.Equal(t, Running, ist.To)
}

func TestMarkExitedStoppingWinsOverExitCode(t *testing.T) {
	// P3 / scenario 10: explicit stop wins over spontaneous exit accounting.
	p := newTestProcess(t)
	require.NoError(t, p.MarkStarting())
	require.NoError(t, p.MarkRunning(1))
	require.NoError(t, p.MarkStopping())

	require.NoError(t, p.MarkExited(137))
	assert.Equal(t, Stopped, p.State)
	assert.Equal(t, int64(0), p.ConsecutiveFailures)
}

func TestMarkExitedAfterStoppedIsNoOp(t *testing.T) {
	// Invariant 4: a further exit delivery while already Stopped leaves
	// state at Stopped.
	p := newTestProcess(t)
	require.NoError(t, p.MarkStarting())
	require.NoError(t, p.MarkRunning(1))
	require.NoError(t, p.MarkStopping())
	require.NoError(t, p.MarkStopped())

	require.NoError(t, p.MarkExited(0))
	assert.Equal(t, Stopped, p.State)
}

func TestMarkExitedSuccessAndFailureBranches(t *testing.T) {
	p := newTestProcess(t)
	require.NoError(t, p.MarkStarting())
	require.NoError(t, p.MarkRunning(1))
	require.NoError(t, p.MarkExited(0))
	assert.Equal(t, Exited, p.State)

	p2 := newTestProcess(t)
	require.NoError(t, p2.MarkStarting())
	require.NoError(t, p2.MarkRunning(1))
	require.NoError(t, p2.MarkExited(1))
	assert.Equal(t, Failed, p2.State)
}

func TestShouldRestartPolicies(t *testing.T) {
	cases := []struct {
		policy RestartPolicy
		state  State
		want   bool
	}{
		{RestartNever, Failed, false},
		{RestartAlways, Failed, true},
		{RestartAlways, Exited, true},
		{RestartOnFailure, Failed, true},
		{RestartOnFailure, Exited, false},
		{RestartOnSuccess, Exited, true},
		{RestartOnSuccess, Failed, false},
	}
	for _, c := range cases {
		p := newTestProcess(t)
		p.Config.RestartPolicy = c.policy
		p.State = c.state
		assert.Equal(t, c.want, p.ShouldRestart(), "%v/%v", c.policy, c.state)
	}
}

func TestCloneWithNameRejectsWhileRunning(t *testing.T) {
	p := newTestProcess(t)
	require.NoError(t, p.MarkStarting())
	_, err := p.CloneWithName("svc2")
	assert.ErrorIs(t, err, ErrCloneWhileRunning)

	require.NoError(t, p.MarkRunning(1))
	_, err = p.CloneWithName("svc2")
	assert.ErrorIs(t, err, ErrCloneWhileRunning)
}

func TestCloneWithNameCopiesConfigNotRuntimeState(t *testing.T) {
	p := newTestProcess(t)
	p.Config.Args = []string{"-c", "true"}
	p.RunCount = 5
	p.ConsecutiveFailures = 2

	clone, err := p.CloneWithName("svc2")
	require.NoError(t, err)
	assert.Equal(t, "svc2", clone.Name)
	assert.Equal(t, Created, clone.State)
	assert.Equal(t, int64(0), clone.RunCount)
	assert.Equal(t, int64(0), clone.ConsecutiveFailures)
	assert.Equal(t, p.Config.Args, clone.Config.Args)

	// Mutating the clone's slice must not affect the original (deep copy).
	clone.Config.Args[0] = "mutated"
	assert.Equal(t, "-c", p.Config.Args[0])
}

func TestCloneWithNameDropsRelationshipEdges(t *testing.T) {
	p := newTestProcess(t)
	p.Config.Requires = []string{"db"}
	p.Config.BindsTo = []string{"db"}
	p.Config.Conflicts = []string{"other"}
	p.Config.After = []string{"db"}
	p.Config.Before = []string{"frontend"}
	p.Config.Wants = []string{"cache"}
	p.Config.PidFile = "/run/svc1.pid"
	p.Config.Stdout = "/var/log/svc1.out"
	p.Config.Stderr = "/var/log/svc1.err"
	p.Config.SocketActivation = &SocketConfig{Name: "sock1", Service: "svc1"}

	clone, err := p.CloneWithName("svc2")
	require.NoError(t, err)
	assert.Empty(t, clone.Config.Requires)
	assert.Empty(t, clone.Config.BindsTo)
	assert.Empty(t, clone.Config.Conflicts)
	assert.Empty(t, clone.Config.After)
	assert.Empty(t, clone.Config.Before)
	assert.Empty(t, clone.Config.Wants)
	assert.Empty(t, clone.Config.PidFile)
	assert.Equal(t, IOInherit, clone.Config.Stdout)
	assert.Equal(t, IOInherit, clone.Config.Stderr)
	assert.Nil(t, clone.Config.SocketActivation)
}

func TestIsExitCodeSuccess(t *testing.T) {
	p := newTestProcess(t)
	p.Config.SuccessExitStatus = map[int]bool{0: true, 2: true}
	assert.True(t, p.IsExitCodeSuccess(0))
	assert.True(t, p.IsExitCodeSuccess(2))
	assert.False(t, p.IsExitCodeSuccess(1))
}
