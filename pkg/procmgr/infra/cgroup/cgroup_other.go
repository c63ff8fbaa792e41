// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build !linux

package cgroup

import (
	"errors"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// ErrUnsupported is returned on every platform but Linux: cgroups are a
// Linux-only concept.
var ErrUnsupported = errors.New("cgroup: not supported on this platform")

type Group struct{}

func Ensure(name string, limits process.ResourceLimits) (*Group, error) {
	return nil, ErrUnsupported
}

func (g *Group) AddProcess(pid int) error { return ErrUnsupported }
func (g *Group) Kill() error              { return ErrUnsupported }
func (g *Group) Delete() error            { return ErrUnsupported }
