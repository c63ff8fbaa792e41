// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build linux

// Package cgroup manages the /sys/fs/cgroup/pm-processes/<name> hierarchy
// used for KillMode={ControlGroup,Mixed}, on top of containerd/cgroups/v3's
// cgroup2 driver.
package cgroup

import (
	"fmt"
	"os"

	"github.com/containerd/cgroups/v3/cgroup2"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

const rootGroup = "/pm-processes"

// Group wraps a single process's cgroup.
type Group struct {
	name    string
	manager *cgroup2.Manager
}

// Ensure creates (or reuses) the cgroup for name, applying the given
// resource limits.
func Ensure(name string, limits process.ResourceLimits) (*Group, error) {
	res := toResources(limits)
	m, err := cgroup2.NewManager("/sys/fs/cgroup", groupPath(name), res)
	if err != nil {
		return nil, fmt.Errorf("cgroup: create %s: %w", name, err)
	}
	return &Group{name: name, manager: m}, nil
}

func groupPath(name string) string {
	return rootGroup + "/" + name
}

// AddProcess moves pid into the group. The child must not have exec'd any
// grandchildren yet; a short cooperative delay in the target is acceptable.
func (g *Group) AddProcess(pid int) error {
	return g.manager.AddProc(uint64(pid))
}

// Kill implements the ControlGroup/Mixed-group half of kill_with_mode:
// prefer cgroup.kill, falling back to iterating cgroup.procs and signaling
// each pid directly if the kernel predates the single-write primitive.
func (g *Group) Kill() error {
	if err := g.manager.Kill(); err == nil {
		return nil
	}
	procs, err := g.manager.Procs(true)
	if err != nil {
		return fmt.Errorf("cgroup: list procs for %s: %w", g.name, err)
	}
	var firstErr error
	for _, pid := range procs {
		if p, err := os.FindProcess(int(pid)); err == nil {
			if err := p.Kill(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Delete tears down the cgroup once its process has exited.
func (g *Group) Delete() error {
	return g.manager.Delete()
}

func toResources(limits process.ResourceLimits) *cgroup2.Resources {
	res := &cgroup2.Resources{}
	if limits.CPULimitMillicores > 0 {
		period := uint64(100000)
		quota := int64(limits.CPULimitMillicores * int64(period) / 1000)
		res.CPU = &cgroup2.CPU{Max: cgroup2.NewCPUMax(&quota, &period)}
	}
	if limits.MemoryLimitBytes > 0 {
		max := limits.MemoryLimitBytes
		res.Memory = &cgroup2.Memory{Max: &max}
	}
	if limits.PidsLimit > 0 {
		max := limits.PidsLimit
		res.Pids = &cgroup2.Pids{Max: max}
	}
	return res
}
