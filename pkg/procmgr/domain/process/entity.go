// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package process

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ID is an opaque, time-ordered process identity (UUIDv7).
type ID uuid.UUID

func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// uuid.NewV7 only fails if the runtime's random source is broken;
		// falling back to v4 keeps identity uniqueness without a panic.
		id = uuid.New()
	}
	return ID(id)
}

func (id ID) String() string { return uuid.UUID(id).String() }

// Process is the aggregate root: identity, immutable-ish configuration,
// state, counters and timestamps.
type Process struct {
	ID   ID
	Name string

	Config Config

	State State

	PID        *int
	ExitCode   *int
	SignalName string

	ConsecutiveFailures int64
	RunCount            int64
	StartTimes          []time.Time // bounded sliding window, see RestartTracker

	HealthStatus        HealthStatus
	HealthCheckFailures int64
	LastHealthCheck     *time.Time

	CreatedAt time.Time
	StartedAt *time.Time
	StoppedAt *time.Time
}

// New validates name and command and returns a freshly Created process.
func New(name string, cfg Config) (*Process, error) {
	if name == "" || strings.ContainsAny(name, " \t\n\r") {
		return nil, ErrInvalidName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Process{
		ID:           NewID(),
		Name:         name,
		Config:       cfg,
		State:        Created,
		HealthStatus: HealthUnknown,
		CreatedAt:    time.Now(),
	}, nil
}

func (p *Process) transition(to State) error {
	if err := checkTransition(p.State, to); err != nil {
		return err
	}
	p.State = to
	return nil
}

// MarkStarting moves Created|Stopped|Exited|Failed|Restarting -> Starting.
func (p *Process) MarkStarting() error {
	return p.transition(Starting)
}

// MarkRunning records pid and moves Starting -> Running.
func (p *Process) MarkRunning(pid int) error {
	if err := p.transition(Running); err != nil {
		return err
	}
	p.PID = &pid
	now := time.Now()
	p.StartedAt = &now
	p.StoppedAt = nil
	p.ExitCode = nil
	return nil
}

// MarkStopping moves Running -> Stopping; pid remains set.
func (p *Process) MarkStopping() error {
	return p.transition(Stopping)
}

// MarkStopped moves Stopping -> Stopped and clears pid.
func (p *Process) MarkStopped() error {
	if err := p.transition(Stopped); err != nil {
		return err
	}
	p.PID = nil
	now := time.Now()
	p.StoppedAt = &now
	return nil
}

// MarkRestarting moves Exited|Failed -> Restarting.
func (p *Process) MarkRestarting() error {
	return p.transition(Restarting)
}

// MarkExited applies the exit-handling branching logic:
//
//	Stopped  -> record code only, state stays Stopped
//	Stopping -> Stopped regardless of code
//	otherwise -> Exited if code is a success code, else Failed
func (p *Process) MarkExited(code int) error {
	p.ExitCode = &code

	switch p.State {
	case Stopped:
		return nil
	case Stopping:
		return p.MarkStopped()
	default:
		p.PID = nil
		now := time.Now()
		p.StoppedAt = &now
		if p.Config.isExitCodeSuccess(code) {
			return p.transition(Exited)
		}
		return p.transition(Failed)
	}
}

// IsExitCodeSuccess reports whether code is in success_exit_status.
func (p *Process) IsExitCodeSuccess(code int) bool {
	return p.Config.isExitCodeSuccess(code)
}

// ShouldRestart evaluates restart_policy against the current state/exit
// code.
func (p *Process) ShouldRestart() bool {
	switch p.Config.RestartPolicy {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return p.State == Failed
	case RestartOnSuccess:
		return p.State == Exited
	case RestartNever:
		return false
	default:
		return false
	}
}

// RanLongEnough reports whether the process has been running (or was
// running, as of StartedAt) for at least runtime_success_sec.
func (p *Process) RanLongEnough() bool {
	if p.StartedAt == nil {
		return false
	}
	ref := time.Now()
	if p.StoppedAt != nil {
		ref = *p.StoppedAt
	}
	return ref.Sub(*p.StartedAt) >= p.Config.runtimeSuccessDuration()
}

// ResetFailures clears consecutive_failures.
func (p *Process) ResetFailures() {
	p.ConsecutiveFailures = 0
}

// RecordFailure implements the Failed branch's failure-counter bump.
func (p *Process) RecordFailure() {
	p.ConsecutiveFailures++
}

// IncrementRunCount increments run_count; call exactly once per successful
// spawn.
func (p *Process) IncrementRunCount() {
	p.RunCount++
}

// CloneWithName deep-copies configuration into a brand new Created entity.
// Per invariant 7, it carries no runtime state and none of the relationship
// edges, pidfile, stdio targets, or socket_activation binding that belong
// to the template, not the clone. It is an error to clone while Starting or
// Running.
func (p *Process) CloneWithName(newName string) (*Process, error) {
	if p.State == Starting || p.State == Running {
		return nil, ErrCloneWhileRunning
	}
	cfg := p.Config.Clone()
	cfg.Requires = nil
	cfg.BindsTo = nil
	cfg.Conflicts = nil
	cfg.After = nil
	cfg.Before = nil
	cfg.Wants = nil
	cfg.PidFile = ""
	cfg.Stdout = IOInherit
	cfg.Stderr = IOInherit
	cfg.SocketActivation = nil
	return New(newName, cfg)
}
