// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package watcher implements exit-event delivery: one blocking goroutine
// per registration awaits its ExitWaiter and emits a ProcessExitEvent on a
// single shared channel buffered to unboundedBuffer events. Nothing here
// polls /proc.
package watcher

import (
	"context"
	"sync"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// unboundedBuffer is large enough that a burst of simultaneous exits never
// blocks an executor-owned wait goroutine; the supervisor is the sole
// consumer and drains promptly.
const unboundedBuffer = 4096

// Watcher is the default ports.Watcher implementation.
type Watcher struct {
	events chan ports.ProcessExitEvent

	mu   sync.Mutex
	done chan struct{}
}

// New constructs a Watcher. Wait goroutines registered against it run
// until their ExitWaiter returns; Close only stops their event sends.
func New() *Watcher {
	return &Watcher{
		events: make(chan ports.ProcessExitEvent, unboundedBuffer),
		done:   make(chan struct{}),
	}
}

// Events returns the single channel the supervisor selects on.
func (w *Watcher) Events() <-chan ports.ProcessExitEvent {
	return w.events
}

// Register starts a goroutine that blocks on handle.Wait and emits one
// ProcessExitEvent when it returns. Delivery is at-least-once: if the
// process is registered twice (e.g. a stale re-registration race), both
// goroutines will emit, and the supervisor's re-read-before-mutate pattern
// tolerates the duplicate.
func (w *Watcher) Register(id process.ID, pid int, handle ports.ExitWaiter) {
	go func() {
		ctx := context.Background()
		code, err := handle.Wait(ctx)
		if err != nil {
			log.Warnf("watcher: wait for pid %d (%s) returned error: %v", pid, id, err)
		}
		select {
		case w.events <- ports.ProcessExitEvent{ProcessID: id, PID: pid, ExitCode: code}:
		case <-w.done:
		}
	}()
}

// Close stops delivering further events to consumers that select on Close's
// done channel; in-flight Wait goroutines still complete but their sends
// become no-ops once closed.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
