// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package ports declares the capability-set interfaces the supervisor is
// built against: Executor, Repository and HealthProbe. Production code gets
// concrete drivers from pkg/procmgr/infra/*; tests supply deterministic
// in-memory fakes.
package ports

import (
	"context"
	"errors"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// Errors returned by the executor port. The supervisor never treats these
// as fatal: a spawn failure is mapped to a synthetic exit code.
var (
	ErrSpawn  = errors.New("spawn error")
	ErrKill   = errors.New("kill error")
	ErrCgroup = errors.New("cgroup error")
)

// SpawnConfig captures everything the executor needs to launch one child.
type SpawnConfig struct {
	ProcessName string
	Command     string
	Args        []string

	// Env is the fully composed child environment (environment_file first,
	// then entity env; entity overrides on collision). The executor never
	// adds the supervisor's own environment.
	Env []string

	WorkingDir string
	User       string
	Group      string

	Stdout process.IOTarget
	Stderr process.IOTarget

	KillMode            process.KillMode
	ResourceLimits      process.ResourceLimits
	AmbientCapabilities []string
	RuntimeDirectories  []string

	ExecStartPre  [][]string
	ExecStartPost [][]string
	ExecStopPost  [][]string

	// ExtraFiles are inherited file descriptors starting at fd 3, used for
	// socket activation hand-off (LISTEN_FDS convention).
	ExtraFiles []uintptr
	// ListenFdNames holds, per entry of ExtraFiles, the env var name the
	// child should read that fd's number from (e.g. "DD_APM_NET_RECEIVER_FD").
	// An empty string skips the named var for that fd; LISTEN_FDS/LISTEN_PID
	// are always exported alongside when ExtraFiles is non-empty.
	ListenFdNames []string
}

// SpawnResult is returned by a successful Spawn.
type SpawnResult struct {
	PID int
	// ExitHandle, when non-nil, lets the watcher await this child without
	// polling.
	ExitHandle ExitWaiter
}

// ExitWaiter is satisfied by anything that can block until a spawned child
// exits and report its exit code.
type ExitWaiter interface {
	Wait(ctx context.Context) (exitCode int, err error)
}

// Executor is the spawn/kill/wait port.
type Executor interface {
	Spawn(ctx context.Context, cfg SpawnConfig) (SpawnResult, error)
	Kill(pid int, signal int) error
	KillWithMode(pid int, signal int, mode process.KillMode) error
	IsRunning(pid int) (bool, error)
	WaitForExit(ctx context.Context, pid int) (exitCode int, err error)
	// RemoveRuntimeDirectories tears down runtime_directory entries once an
	// entity is fully stopped; names are relative, as in SpawnConfig.
	RemoveRuntimeDirectories(names []string)
}
