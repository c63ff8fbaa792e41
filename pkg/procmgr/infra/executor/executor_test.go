// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package executor

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// forkThreeChildrenScript spawns three background sleeps and waits on the
// shell itself, so the shell's own pid is the only one exposed to the
// supervisor while its three children remain discoverable by pgid.
const forkThreeChildrenScript = `sleep 30 & sleep 30 & sleep 30 & echo "$!" ; wait`

func countSurvivors(t *testing.T, pgid int) int {
	t.Helper()
	entries, err := os.ReadDir("/proc")
	require.NoError(t, err)
	count := 0
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		g, err := syscall.Getpgid(pid)
		if err != nil {
			continue
		}
		if g != pgid {
			continue
		}
		// A killed process stays in /proc as an unreaped zombie, still
		// carrying its pgid; it is dead, not a survivor.
		if stat, err := os.ReadFile("/proc/" + e.Name() + "/stat"); err == nil {
			if i := bytes.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) && stat[i+2] == 'Z' {
				continue
			}
		}
		count++
	}
	return count
}

func TestSpawnAndWaitForExitCode(t *testing.T) {
	e := New()
	result, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "t1",
		Command:     "/bin/sh",
		Args:        []string{"-c", "exit 3"},
		Env:         []string{"PATH=/usr/bin:/bin"},
		Stdout:      process.IONull,
		Stderr:      process.IONull,
		KillMode:    process.KillProcess,
	})
	require.NoError(t, err)
	assert.Greater(t, result.PID, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := result.ExitHandle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestSpawnFailOnMissingCommand(t *testing.T) {
	e := New()
	_, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "missing",
		Command:     "/definitely/not/a/real/binary",
		Stdout:      process.IONull,
		Stderr:      process.IONull,
	})
	assert.Error(t, err)
}

// kill_mode=process only signals the leader pid, leaving its background
// children in the same process group alive and orphaned.
func TestKillModeProcessLeavesChildrenRunning(t *testing.T) {
	e := New()
	result, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "killmode-process",
		Command:     "/bin/sh",
		Args:        []string{"-c", forkThreeChildrenScript},
		Stdout:      process.IONull,
		Stderr:      process.IONull,
		KillMode:    process.KillProcessGroup,
	})
	require.NoError(t, err)
	pgid := result.PID
	defer syscall.Kill(-pgid, syscall.SIGKILL)

	require.Eventually(t, func() bool { return countSurvivors(t, pgid) == 4 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, e.KillWithMode(result.PID, 15, process.KillProcess))

	assert.Eventually(t, func() bool { return countSurvivors(t, pgid) == 3 }, 2*time.Second, 20*time.Millisecond,
		"the three background sleeps are orphaned, not killed, when kill_mode=process")
}

func TestKillModeProcessGroupKillsEveryone(t *testing.T) {
	e := New()
	result, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "killmode-pgroup",
		Command:     "/bin/sh",
		Args:        []string{"-c", forkThreeChildrenScript},
		Stdout:      process.IONull,
		Stderr:      process.IONull,
		KillMode:    process.KillProcessGroup,
	})
	require.NoError(t, err)
	pgid := result.PID
	defer syscall.Kill(-pgid, syscall.SIGKILL)

	require.Eventually(t, func() bool { return countSurvivors(t, pgid) == 4 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, e.KillWithMode(result.PID, 15, process.KillProcessGroup))

	assert.Eventually(t, func() bool { return countSurvivors(t, pgid) == 0 }, 2*time.Second, 20*time.Millisecond,
		"kill_mode=process-group takes the whole group down, no survivors")
}

func TestKillModeMixedFallsBackToGroupOnSigkillWithoutCgroup(t *testing.T) {
	e := New()
	result, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "killmode-mixed",
		Command:     "/bin/sh",
		Args:        []string{"-c", forkThreeChildrenScript},
		Stdout:      process.IONull,
		Stderr:      process.IONull,
		KillMode:    process.KillMixed,
	})
	require.NoError(t, err)
	pgid := result.PID
	defer syscall.Kill(-pgid, syscall.SIGKILL)

	require.Eventually(t, func() bool { return countSurvivors(t, pgid) == 4 }, 2*time.Second, 20*time.Millisecond)

	// No cgroup is attached in this test environment, so mixed mode's
	// cgroup.kill attempt fails and it falls back to the process-group
	// SIGKILL, matching ControlGroup/Mixed's "zero survivors" scenario.
	require.NoError(t, e.KillWithMode(result.PID, 9, process.KillMixed))

	assert.Eventually(t, func() bool { return countSurvivors(t, pgid) == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestEnvIsolation(t *testing.T) {
	// The child's environment is exactly what Spawn passed in, nothing from
	// the test process is inherited.
	e := New()
	result, err := e.Spawn(context.Background(), ports.SpawnConfig{
		ProcessName: "envcheck",
		Command:     "/bin/sh",
		Args:        []string{"-c", `test "$ONLY_VAR" = "set" && ! [ -n "$PATH_SHOULD_NOT_EXIST" ]`},
		Env:         []string{"ONLY_VAR=set"},
		Stdout:      process.IONull,
		Stderr:      process.IONull,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := result.ExitHandle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
