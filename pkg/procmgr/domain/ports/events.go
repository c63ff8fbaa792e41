// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package ports

import "github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"

// ProcessExitEvent is delivered by the watcher the moment a child dies.
// Delivery is at-least-once within a registration.
type ProcessExitEvent struct {
	ProcessID process.ID
	PID       int
	ExitCode  int
}

// SocketActivationEvent is emitted by the socket activation manager on
// first accept (accept=false) or per connection (accept=true).
type SocketActivationEvent struct {
	SocketName  string
	ServiceName string
	FD          uintptr
	Accept      bool
}

// Watcher registers spawned children and fans out exit events on a single
// channel.
type Watcher interface {
	Register(id process.ID, pid int, handle ExitWaiter)
	Events() <-chan ProcessExitEvent
}
