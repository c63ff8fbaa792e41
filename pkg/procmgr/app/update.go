// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package app holds the use cases that sit above the core domain but below
// the gRPC/CLI collaborators: the hot-update flow, with --dry-run and
// --restart-process semantics matching process_manager's CLI.
package app

import (
	"context"
	"fmt"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// UpdateOptions carries every field the update use case can change. A nil
// pointer/slice means "leave unchanged". This mirrors the CLI's
// UpdateRequest shape (process_manager/cli/src/commands.rs handle_update)
// one level up from the wire format.
type UpdateOptions struct {
	// Hot fields: applied in place, no restart required.
	RestartPolicy         *process.RestartPolicy
	RestartDelaySec       *int64
	RestartMaxDelaySec    *int64
	StartLimitBurst       *int64
	StartLimitIntervalSec *int64
	TimeoutStopSec        *int64
	ResourceLimits        *process.ResourceLimits
	HealthCheck           *process.HealthCheckConfig
	SuccessExitStatus     map[int]bool

	// Restart-required fields: written into Config immediately so the next
	// spawn picks them up, but only take effect on a running process if
	// RestartProcess is set (or the caller restarts it some other way).
	Env                 map[string]string
	EnvironmentFile      *string
	WorkingDir           *string
	User                 *string
	Group                *string
	RuntimeDirectory     []string
	AmbientCapabilities  []string
	KillMode             *process.KillMode
	KillSignal           *int
	PidFile              *string

	// RestartProcess, set, orders an orderly stop+start after applying
	// restart-required changes to a process that is currently Running.
	RestartProcess bool
	// DryRun validates the merged configuration without persisting or
	// restarting anything.
	DryRun bool
}

// UpdateResult reports what happened, for a CLI/gRPC layer to render.
type UpdateResult struct {
	UpdatedFields         []string
	RestartRequiredFields []string
	ProcessRestarted      bool
}

// restarter is the subset of *supervisor.Supervisor the update use case
// needs; kept as an interface so this package doesn't import supervisor
// (which would create an import cycle back through ports in tests that
// stub it out).
type restarter interface {
	StopProcess(id process.ID) error
	StartProcess(ctx context.Context, id process.ID) error
}

// UpdateProcess merges opts into the named process's configuration,
// validates the result, and — unless DryRun is set — persists it. If
// RestartProcess is set and any restart-required field was supplied in opts
// (even with its current value) for a Running process, the process is
// stopped and started to apply them.
func UpdateProcess(ctx context.Context, repo ports.Repository, sup restarter, id process.ID, opts UpdateOptions) (*UpdateResult, error) {
	p, err := repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	cfg := p.Config.Clone()
	result := &UpdateResult{}

	applyHotFields(&cfg, opts, result)
	applyRestartRequiredFields(&cfg, opts, result)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: update %s: %w", p.Name, err)
	}

	if opts.DryRun {
		return result, nil
	}

	wasRunning := p.State == process.Running
	p.Config = cfg
	if err := repo.Save(p); err != nil {
		return nil, fmt.Errorf("app: update %s: save: %w", p.Name, err)
	}

	if opts.RestartProcess && wasRunning && len(result.RestartRequiredFields) > 0 {
		if err := sup.StopProcess(id); err != nil {
			return result, fmt.Errorf("app: update %s: stop: %w", p.Name, err)
		}
		if err := sup.StartProcess(ctx, id); err != nil {
			return result, fmt.Errorf("app: update %s: start: %w", p.Name, err)
		}
		result.ProcessRestarted = true
	}

	return result, nil
}

func applyHotFields(cfg *process.Config, opts UpdateOptions, result *UpdateResult) {
	if opts.RestartPolicy != nil {
		cfg.RestartPolicy = *opts.RestartPolicy
		result.UpdatedFields = append(result.UpdatedFields, "restart_policy")
	}
	if opts.RestartDelaySec != nil {
		cfg.RestartDelaySec = *opts.RestartDelaySec
		result.UpdatedFields = append(result.UpdatedFields, "restart_delay_sec")
	}
	if opts.RestartMaxDelaySec != nil {
		cfg.RestartMaxDelaySec = *opts.RestartMaxDelaySec
		result.UpdatedFields = append(result.UpdatedFields, "restart_max_delay_sec")
	}
	if opts.StartLimitBurst != nil {
		cfg.StartLimitBurst = *opts.StartLimitBurst
		result.UpdatedFields = append(result.UpdatedFields, "start_limit_burst")
	}
	if opts.StartLimitIntervalSec != nil {
		cfg.StartLimitIntervalSec = *opts.StartLimitIntervalSec
		result.UpdatedFields = append(result.UpdatedFields, "start_limit_interval_sec")
	}
	if opts.TimeoutStopSec != nil {
		cfg.TimeoutStopSec = *opts.TimeoutStopSec
		result.UpdatedFields = append(result.UpdatedFields, "timeout_stop_sec")
	}
	if opts.ResourceLimits != nil {
		cfg.ResourceLimits = *opts.ResourceLimits
		result.UpdatedFields = append(result.UpdatedFields, "resource_limits")
	}
	if opts.HealthCheck != nil {
		cfg.HealthCheck = opts.HealthCheck
		result.UpdatedFields = append(result.UpdatedFields, "health_check")
	}
	if opts.SuccessExitStatus != nil {
		cfg.SuccessExitStatus = opts.SuccessExitStatus
		result.UpdatedFields = append(result.UpdatedFields, "success_exit_status")
	}
}

func applyRestartRequiredFields(cfg *process.Config, opts UpdateOptions, result *UpdateResult) {
	if opts.Env != nil {
		if cfg.Env == nil {
			cfg.Env = make(map[string]string, len(opts.Env))
		}
		for k, v := range opts.Env {
			cfg.Env[k] = v
		}
		result.RestartRequiredFields = append(result.RestartRequiredFields, "env")
	}
	if opts.EnvironmentFile != nil {
		cfg.EnvironmentFile = *opts.EnvironmentFile
		result.RestartRequiredFields = append(result.RestartRequiredFields, "environment_file")
	}
	if opts.WorkingDir != nil {
		cfg.WorkingDir = *opts.WorkingDir
		result.RestartRequiredFields = append(result.RestartRequiredFields, "working_dir")
	}
	if opts.User != nil {
		cfg.User = *opts.User
		result.RestartRequiredFields = append(result.RestartRequiredFields, "user")
	}
	if opts.Group != nil {
		cfg.Group = *opts.Group
		result.RestartRequiredFields = append(result.RestartRequiredFields, "group")
	}
	if opts.RuntimeDirectory != nil {
		cfg.RuntimeDirectory = opts.RuntimeDirectory
		result.RestartRequiredFields = append(result.RestartRequiredFields, "runtime_directory")
	}
	if opts.AmbientCapabilities != nil {
		cfg.AmbientCapabilities = opts.AmbientCapabilities
		result.RestartRequiredFields = append(result.RestartRequiredFields, "ambient_capabilities")
	}
	if opts.KillMode != nil {
		cfg.KillMode = *opts.KillMode
		result.RestartRequiredFields = append(result.RestartRequiredFields, "kill_mode")
	}
	if opts.KillSignal != nil {
		cfg.KillSignal = *opts.KillSignal
		result.RestartRequiredFields = append(result.RestartRequiredFields, "kill_signal")
	}
	if opts.PidFile != nil {
		cfg.PidFile = *opts.PidFile
		result.RestartRequiredFields = append(result.RestartRequiredFields, "pidfile")
	}
}
