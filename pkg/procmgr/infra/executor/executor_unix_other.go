// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !linux && !windows

package executor

import (
	"os/exec"
	"syscall"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Non-Linux Unix (darwin/bsd): cgroups don't exist, so ControlGroup and
// Mixed signal the main pid only, as Process does; ProcessGroup still
// signals the whole process group.

func attachToCgroup(name string, pid int, limits process.ResourceLimits) error {
	log.Warnf("executor: cgroups unavailable on this platform, %s runs unconfined", name)
	return nil
}

func configureSysProcAttr(cmd *exec.Cmd, cfg ports.SpawnConfig) error {
	if cfg.KillMode == process.KillProcessGroup || cfg.KillMode == process.KillMixed {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	return nil
}

func (e *Executor) killWithMode(pid int, signal int, mode process.KillMode) error {
	if mode == process.KillProcessGroup {
		if err := syscall.Kill(-pid, syscall.Signal(signal)); err == nil {
			return nil
		}
	}
	return e.Kill(pid, signal)
}

func syscallSigZero() syscall.Signal  { return syscall.Signal(0) }
func osSignal(sig int) syscall.Signal { return syscall.Signal(sig) }

func platformIsRunning(pid int) (bool, error) {
	return signalZeroIsRunning(pid)
}
