// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package process

import "time"

// ProcessType mirrors the systemd service "Type=" taxonomy this model was
// distilled from.
type ProcessType string

const (
	Simple  ProcessType = "simple"
	Forking ProcessType = "forking"
	Oneshot ProcessType = "oneshot"
	Notify  ProcessType = "notify"
)

// RestartPolicy decides whether should_restart fires after an exit.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartAlways    RestartPolicy = "always"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartOnSuccess RestartPolicy = "on-success"
)

// KillMode is the systemd KillMode taxonomy: how a stop signal fans out to
// the process tree.
type KillMode string

const (
	KillControlGroup KillMode = "control-group"
	KillProcessGroup KillMode = "process-group"
	KillProcess      KillMode = "process"
	KillMixed        KillMode = "mixed"
)

// IOTarget is one of a literal path, "inherit", or "null".
type IOTarget string

const (
	IOInherit IOTarget = "inherit"
	IONull    IOTarget = "null"
)

// HealthCheckType selects the probe driver the health monitor runs.
type HealthCheckType string

const (
	HealthHTTP HealthCheckType = "http"
	HealthTCP  HealthCheckType = "tcp"
	HealthExec HealthCheckType = "exec"
	// HealthSystemdUnit queries a systemd-managed peer's ActiveState over
	// D-Bus; a restart-on-unhealthy policy layered above this core can use
	// it to watch a unit the process manager does not itself own.
	HealthSystemdUnit HealthCheckType = "systemd-unit"
	// HealthProcess is a bare liveness probe against the managed process's
	// own pid, for platforms/process types where exec/http/tcp targets
	// don't apply.
	HealthProcess HealthCheckType = "process"
)

// HealthStatus is the last-observed health state, mutated only by the
// health monitor.
type HealthStatus string

const (
	HealthUnknown   HealthStatus = "unknown"
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// ConditionKind tags a condition_path_exists predicate.
type ConditionKind string

const (
	MustExist    ConditionKind = "must-exist"
	MustNotExist ConditionKind = "must-not-exist"
	OrGroup      ConditionKind = "or-group"
)

// PathCondition is one entry of condition_path_exists.
type PathCondition struct {
	Path string
	Kind ConditionKind
}

// ResourceLimits bounds what the executor requests of the cgroup/ulimit
// layer. Zero value means "no limit".
type ResourceLimits struct {
	CPURequestMillicores int64
	CPULimitMillicores   int64
	MemoryRequestBytes   int64
	MemoryLimitBytes     int64
	PidsLimit            int64
	OOMScoreAdj          int
}

// HealthCheckConfig describes a periodic liveness probe (§4.F).
type HealthCheckConfig struct {
	Type        HealthCheckType
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration

	// HTTP target.
	HTTPURL    string
	HTTPMethod string
	HTTPStatus int

	// TCP target.
	TCPAddr string

	// Exec target.
	ExecCommand string
	ExecArgs    []string

	// Systemd unit target (HealthSystemdUnit).
	SystemdUnitName string

	// PID is filled in by the health monitor immediately before each probe
	// attempt for HealthProcess; it is never set from configuration.
	PID int
}

// SocketConfigSource distinguishes explicitly authored listen parameters
// from ones resolved via the Datadog config reader (§4.G step 1).
type SocketConfigSource string

const (
	ConfigExplicit         SocketConfigSource = "explicit"
	ConfigDatadogAPM       SocketConfigSource = "datadog-apm"
	ConfigDatadogOTLP      SocketConfigSource = "datadog-otlp"
	ConfigDatadogDogstatsd SocketConfigSource = "datadog-dogstatsd"
)

// SocketConfig is the declarative input to the socket activation manager.
type SocketConfig struct {
	Name         string
	Service      string
	ListenStream string // "host:port"
	ListenUnix   string // path
	SocketMode   *uint32
	Accept       bool
	ConfigSource SocketConfigSource
	FdEnvVar     string
}
