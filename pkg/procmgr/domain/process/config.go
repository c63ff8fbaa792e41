// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package process

import "time"

// Config is the immutable-after-create configuration of a process.
// Fields marked "hot" in the comment may be changed in place by an update
// use case without a restart; everything else requires one (see
// DESIGN.md "Hot-update use case").
type Config struct {
	Command string
	Args    []string

	ProcessType   ProcessType
	RestartPolicy RestartPolicy // hot

	RestartDelaySec      int64 // hot
	RestartMaxDelaySec   int64 // hot
	StartLimitBurst      int64 // hot
	StartLimitIntervalSec int64 // hot
	RuntimeSuccessSec    int64 // hot

	Requires  []string
	BindsTo   []string
	Conflicts []string
	After     []string
	Before    []string
	Wants     []string

	WorkingDir          string
	Env                 map[string]string // requires restart
	EnvironmentFile     string            // requires restart
	User                string            // requires restart
	Group               string            // requires restart
	AmbientCapabilities []string          // requires restart

	Stdout  IOTarget
	Stderr  IOTarget
	PidFile string

	ExecStartPre  [][]string
	ExecStartPost [][]string
	ExecStopPost  [][]string

	TimeoutStartSec int64 // 0 = unbounded
	TimeoutStopSec  int64 // default 90; hot

	KillSignal int // default SIGTERM (15)
	KillMode   KillMode

	SuccessExitStatus map[int]bool // default {0}; hot

	ResourceLimits ResourceLimits // hot

	ConditionPathExists []PathCondition

	SocketActivation *SocketConfig

	RuntimeDirectory []string // requires restart, relative paths under /run

	HealthCheck *HealthCheckConfig // hot
}

// DefaultConfig returns a Config with every spec-mandated default applied.
func DefaultConfig(command string) Config {
	return Config{
		Command:               command,
		ProcessType:           Simple,
		RestartPolicy:         RestartNever,
		RestartDelaySec:       1,
		RestartMaxDelaySec:    300,
		StartLimitBurst:       5,
		StartLimitIntervalSec: 60,
		RuntimeSuccessSec:     10,
		Stdout:                IOInherit,
		Stderr:                IOInherit,
		TimeoutStopSec:        90,
		KillSignal:            15,
		KillMode:              KillControlGroup,
		SuccessExitStatus:     map[int]bool{0: true},
	}
}

func (c Config) isExitCodeSuccess(code int) bool {
	if len(c.SuccessExitStatus) == 0 {
		return code == 0
	}
	return c.SuccessExitStatus[code]
}

// runtimeSuccessDuration exposes RuntimeSuccessSec as a time.Duration.
func (c Config) runtimeSuccessDuration() time.Duration {
	return time.Duration(c.RuntimeSuccessSec) * time.Second
}

// RuntimeSuccessDuration is the exported form used by packages outside
// process (supervisor's runtime-success timer).
func (c Config) RuntimeSuccessDuration() time.Duration {
	return c.runtimeSuccessDuration()
}

// Clone deep-copies the configuration so a cloned process never shares
// backing slices/maps with the original.
func (c Config) Clone() Config {
	out := c
	out.Args = append([]string(nil), c.Args...)
	out.Requires = append([]string(nil), c.Requires...)
	out.BindsTo = append([]string(nil), c.BindsTo...)
	out.Conflicts = append([]string(nil), c.Conflicts...)
	out.After = append([]string(nil), c.After...)
	out.Before = append([]string(nil), c.Before...)
	out.Wants = append([]string(nil), c.Wants...)
	out.AmbientCapabilities = append([]string(nil), c.AmbientCapabilities...)
	out.RuntimeDirectory = append([]string(nil), c.RuntimeDirectory...)
	out.ExecStartPre = cloneCmdList(c.ExecStartPre)
	out.ExecStartPost = cloneCmdList(c.ExecStartPost)
	out.ExecStopPost = cloneCmdList(c.ExecStopPost)
	out.ConditionPathExists = append([]PathCondition(nil), c.ConditionPathExists...)

	if c.Env != nil {
		out.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			out.Env[k] = v
		}
	}
	if c.SuccessExitStatus != nil {
		out.SuccessExitStatus = make(map[int]bool, len(c.SuccessExitStatus))
		for k, v := range c.SuccessExitStatus {
			out.SuccessExitStatus[k] = v
		}
	}
	if c.SocketActivation != nil {
		sc := *c.SocketActivation
		out.SocketActivation = &sc
	}
	if c.HealthCheck != nil {
		hc := *c.HealthCheck
		hc.ExecArgs = append([]string(nil), c.HealthCheck.ExecArgs...)
		out.HealthCheck = &hc
	}
	return out
}

func cloneCmdList(in [][]string) [][]string {
	if in == nil {
		return nil
	}
	out := make([][]string, len(in))
	for i, cmd := range in {
		out[i] = append([]string(nil), cmd...)
	}
	return out
}

// Validate enforces the construction-time invariants on a Config.
func (c Config) Validate() error {
	if c.Command == "" {
		return ErrInvalidCommand
	}
	for _, rd := range c.RuntimeDirectory {
		if len(rd) > 0 && rd[0] == '/' {
			return ErrInvalidConfiguration
		}
	}
	return nil
}
