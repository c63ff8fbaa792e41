// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build windows

package executor

import (
	"os"
	"os/exec"

	gopsutilprocess "github.com/DataDog/gopsutil/process"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Windows has neither cgroups nor POSIX process groups; every kill_mode
// collapses to Process.

func attachToCgroup(name string, pid int, limits process.ResourceLimits) error {
	log.Warnf("executor: cgroups unavailable on windows, %s runs unconfined", name)
	return nil
}

func configureSysProcAttr(cmd *exec.Cmd, cfg ports.SpawnConfig) error {
	return nil
}

func (e *Executor) killWithMode(pid int, signal int, mode process.KillMode) error {
	return e.Kill(pid, signal)
}

type windowsSignal int

func (windowsSignal) Signal() {}
func (windowsSignal) String() string { return "kill" }

func syscallSigZero() os.Signal { return windowsSignal(0) }
func osSignal(sig int) os.Signal {
	if sig == 9 {
		return os.Kill
	}
	return os.Interrupt
}

// platformIsRunning uses gopsutil on Windows: os.Process.Signal has no
// signal-0 equivalent there, so the Unix liveness trick doesn't apply.
func platformIsRunning(pid int) (bool, error) {
	exists, err := gopsutilprocess.PidExists(int32(pid))
	if err != nil {
		return false, err
	}
	return exists, nil
}
