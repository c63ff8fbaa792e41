// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build linux

package executor

import (
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/infra/cgroup"
)

var cgroups = struct {
	groups map[string]*cgroup.Group
}{groups: make(map[string]*cgroup.Group)}

func attachToCgroup(name string, pid int, limits process.ResourceLimits) error {
	g, err := cgroup.Ensure(name, limits)
	if err != nil {
		return err
	}
	if err := g.AddProcess(pid); err != nil {
		return err
	}
	cgroups.groups[name] = g
	return nil
}

func configureSysProcAttr(cmd *exec.Cmd, cfg ports.SpawnConfig) error {
	attr := &syscall.SysProcAttr{}

	if cfg.KillMode == process.KillProcessGroup || cfg.KillMode == process.KillMixed {
		attr.Setpgid = true
		attr.Pgid = 0
	}

	if cfg.User != "" {
		u, err := user.Lookup(cfg.User)
		if err != nil {
			return fmt.Errorf("resolve user %q: %w", cfg.User, err)
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			return err
		}
		gid, err := strconv.Atoi(u.Gid)
		if err != nil {
			return err
		}
		if cfg.Group != "" {
			g, err := user.LookupGroup(cfg.Group)
			if err != nil {
				return fmt.Errorf("resolve group %q: %w", cfg.Group, err)
			}
			gid, err = strconv.Atoi(g.Gid)
			if err != nil {
				return err
			}
		}
		attr.Credential = &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}
	}

	cmd.SysProcAttr = attr
	return nil
}

// killWithMode translates a KillMode into the syscall(s) that deliver signal.
func (e *Executor) killWithMode(pid int, signal int, mode process.KillMode) error {
	switch mode {
	case process.KillControlGroup:
		if g, ok := e.lookupGroup(pid); ok {
			if err := g.Kill(); err != nil {
				return fmt.Errorf("%w: %v", ports.ErrKill, err)
			}
			return nil
		}
		return e.Kill(pid, signal)

	case process.KillProcessGroup:
		pg := e.lookupPgid(pid)
		if err := syscall.Kill(-pg, syscall.Signal(signal)); err != nil {
			return fmt.Errorf("%w: %v", ports.ErrKill, err)
		}
		return nil

	case process.KillMixed:
		const sigkill = 9
		if signal == sigkill {
			if g, ok := e.lookupGroup(pid); ok {
				if err := g.Kill(); err == nil {
					return nil
				}
			}
			pg := e.lookupPgid(pid)
			if pg != 0 {
				_ = syscall.Kill(-pg, syscall.SIGKILL)
				return nil
			}
		}
		return e.Kill(pid, signal)

	default: // process.KillProcess
		return e.Kill(pid, signal)
	}
}

func (e *Executor) lookupGroup(pid int) (*cgroup.Group, bool) {
	e.mu.Lock()
	name, ok := e.groupName[pid]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	g, ok := cgroups.groups[name]
	return g, ok
}

func (e *Executor) lookupPgid(pid int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pg, ok := e.pgid[pid]; ok {
		return pg
	}
	return pid
}

func syscallSigZero() syscall.Signal { return syscall.Signal(0) }
func osSignal(sig int) syscall.Signal {
	return syscall.Signal(sig)
}

func platformIsRunning(pid int) (bool, error) {
	return signalZeroIsRunning(pid)
}
