// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package executor is the default ports.Executor driver: spawns children
// with a fail-closed composed environment, attaches them to cgroups or
// process groups per kill_mode, and reaps them without polling.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Executor is the concrete, OS-backed ports.Executor.
type Executor struct {
	mu        sync.Mutex
	groupName map[int]string // pid -> cgroup name, ControlGroup/Mixed only
	pgid      map[int]int    // pid -> process group id, ProcessGroup/Mixed
}

func New() *Executor {
	return &Executor{
		groupName: make(map[int]string),
		pgid:      make(map[int]int),
	}
}

// cmdWaiter adapts *exec.Cmd to ports.ExitWaiter.
type cmdWaiter struct {
	cmd          *exec.Cmd
	execStopPost [][]string
}

func (w *cmdWaiter) Wait(ctx context.Context) (int, error) {
	err := w.cmd.Wait()

	if len(w.execStopPost) > 0 {
		if hookErr := runHookCommands(context.Background(), w.execStopPost); hookErr != nil {
			log.Warnf("executor: exec_stop_post: %v", hookErr)
		}
	}

	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (e *Executor) Spawn(ctx context.Context, cfg ports.SpawnConfig) (ports.SpawnResult, error) {
	if err := createRuntimeDirectories(cfg.RuntimeDirectories); err != nil {
		return ports.SpawnResult{}, fmt.Errorf("%w: runtime directories: %v", ports.ErrSpawn, err)
	}

	if err := runHookCommands(ctx, cfg.ExecStartPre); err != nil {
		return ports.SpawnResult{}, fmt.Errorf("%w: exec_start_pre: %v", ports.ErrSpawn, err)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = composeListenFdEnv(cfg)
	cmd.Dir = cfg.WorkingDir

	stdout, closeOut, err := resolveIO(cfg.Stdout, os.Stdout)
	if err != nil {
		return ports.SpawnResult{}, fmt.Errorf("%w: stdout: %v", ports.ErrSpawn, err)
	}
	stderr, closeErr, err := resolveIO(cfg.Stderr, os.Stderr)
	if err != nil {
		closeOut()
		return ports.SpawnResult{}, fmt.Errorf("%w: stderr: %v", ports.ErrSpawn, err)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	for _, fd := range cfg.ExtraFiles {
		cmd.ExtraFiles = append(cmd.ExtraFiles, os.NewFile(fd, "socket-activation-fd"))
	}

	if len(cfg.ExtraFiles) > 0 {
		// LISTEN_FDS/named fd vars are known before the child even forks;
		// LISTEN_PID is not (the child's own pid), so it needs the
		// platform-specific fixup below.
		wrapForListenPID(cmd)
	}

	if err := configureSysProcAttr(cmd, cfg); err != nil {
		closeOut()
		closeErr()
		return ports.SpawnResult{}, fmt.Errorf("%w: %v", ports.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		closeOut()
		closeErr()
		return ports.SpawnResult{}, fmt.Errorf("%w: %v", ports.ErrSpawn, err)
	}

	pid := cmd.Process.Pid
	e.registerGroup(pid, cfg)

	if cfg.KillMode == process.KillControlGroup || cfg.KillMode == process.KillMixed {
		if err := attachToCgroup(cfg.ProcessName, pid, cfg.ResourceLimits); err != nil {
			log.Warnf("executor: cgroup attach %s (pid %d): %v", cfg.ProcessName, pid, err)
		} else {
			e.mu.Lock()
			e.groupName[pid] = cfg.ProcessName
			e.mu.Unlock()
		}
	}

	go func() {
		if err := runHookCommands(context.Background(), cfg.ExecStartPost); err != nil {
			log.Warnf("executor: exec_start_post for %s: %v", cfg.ProcessName, err)
		}
	}()

	return ports.SpawnResult{PID: pid, ExitHandle: &cmdWaiter{cmd: cmd, execStopPost: cfg.ExecStopPost}}, nil
}

// composeListenFdEnv appends the systemd socket-activation convention
// (LISTEN_FDS, plus any per-socket named vars) to the already-composed
// child environment. LISTEN_PID is exported separately by wrapForListenPID,
// since it must reflect the child's own pid.
func composeListenFdEnv(cfg ports.SpawnConfig) []string {
	if len(cfg.ExtraFiles) == 0 {
		return cfg.Env
	}
	env := append([]string{}, cfg.Env...)
	env = append(env, fmt.Sprintf("LISTEN_FDS=%d", len(cfg.ExtraFiles)))
	for i, name := range cfg.ListenFdNames {
		if name == "" {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%d", name, 3+i))
	}
	return env
}

func (e *Executor) registerGroup(pid int, cfg ports.SpawnConfig) {
	if cfg.KillMode == process.KillProcessGroup || cfg.KillMode == process.KillMixed {
		e.mu.Lock()
		e.pgid[pid] = pid // Setpgid with Pgid=0 makes pgid == pid
		e.mu.Unlock()
	}
}

// IsRunning delegates to a per-platform liveness check: signal-0 on Unix,
// gopsutil on Windows where os.Process.Signal has no equivalent.
func (e *Executor) IsRunning(pid int) (bool, error) {
	return platformIsRunning(pid)
}

// signalZeroIsRunning is the Unix liveness check shared by the linux and
// non-linux-unix build files.
func signalZeroIsRunning(pid int) (bool, error) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness.
	if err := proc.Signal(syscallSigZero()); err != nil {
		return false, nil
	}
	return true, nil
}

func (e *Executor) WaitForExit(ctx context.Context, pid int) (int, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		running, _ := e.IsRunning(pid)
		if !running {
			return 0, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Executor) Kill(pid int, signal int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("%w: %v", ports.ErrKill, err)
	}
	if err := proc.Signal(osSignal(signal)); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrKill, err)
	}
	return nil
}

func (e *Executor) KillWithMode(pid int, signal int, mode process.KillMode) error {
	return e.killWithMode(pid, signal, mode)
}

// runHookCommands runs each lifecycle hook command in sequence, stopping at
// the first failure. Empty for exec_start_post/exec_stop_post, which are
// fire-and-forget and merely logged on error.
func runHookCommands(ctx context.Context, cmds [][]string) error {
	for _, argv := range cmds {
		if len(argv) == 0 {
			continue
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%v: %w", argv, err)
		}
	}
	return nil
}
