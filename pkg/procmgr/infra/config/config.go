// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package config loads the process manager's daemon configuration: a YAML
// file declaring its own settings plus the set of managed processes,
// overridable by DD_PROCMGR_-prefixed environment variables, via
// DataDog/viper the same way the rest of the agent stack resolves config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/DataDog/viper"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

const envPrefix = "DD_PROCMGR"

// Config is the daemon's top-level settings plus the process definitions
// to sync into the repository at startup.
type Config struct {
	LogLevel   string        `mapstructure:"log_level"`
	GRPCPort   int           `mapstructure:"grpc_port"`
	CgroupRoot string        `mapstructure:"cgroup_root"`
	Processes  []ProcessSpec `mapstructure:"processes"`
}

// ProcessSpec is the YAML shape of one managed process; Load translates it
// into a process.Config via ToDomain.
type ProcessSpec struct {
	Name    string   `mapstructure:"name"`
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`

	ProcessType   string `mapstructure:"process_type"`
	RestartPolicy string `mapstructure:"restart_policy"`

	RestartDelaySec       int64 `mapstructure:"restart_delay_sec"`
	RestartMaxDelaySec    int64 `mapstructure:"restart_max_delay_sec"`
	StartLimitBurst       int64 `mapstructure:"start_limit_burst"`
	StartLimitIntervalSec int64 `mapstructure:"start_limit_interval_sec"`
	RuntimeSuccessSec     int64 `mapstructure:"runtime_success_sec"`

	Requires  []string `mapstructure:"requires"`
	BindsTo   []string `mapstructure:"binds_to"`
	Conflicts []string `mapstructure:"conflicts"`
	After     []string `mapstructure:"after"`
	Before    []string `mapstructure:"before"`
	Wants     []string `mapstructure:"wants"`

	WorkingDir      string            `mapstructure:"working_dir"`
	Env             map[string]string `mapstructure:"env"`
	EnvironmentFile string            `mapstructure:"environment_file"`
	User            string            `mapstructure:"user"`
	Group           string            `mapstructure:"group"`

	TimeoutStartSec int64  `mapstructure:"timeout_start_sec"`
	TimeoutStopSec  int64  `mapstructure:"timeout_stop_sec"`
	KillSignal      int    `mapstructure:"kill_signal"`
	KillMode        string `mapstructure:"kill_mode"`

	RuntimeDirectory []string `mapstructure:"runtime_directory"`

	SocketActivation *SocketActivationSpec `mapstructure:"socket_activation"`
	HealthCheck      *HealthCheckSpec      `mapstructure:"health_check"`
}

// SocketActivationSpec is the YAML shape of one process's socket_activation
// block.
type SocketActivationSpec struct {
	Name         string  `mapstructure:"name"`
	Service      string  `mapstructure:"service"`
	ListenStream string  `mapstructure:"listen_stream"`
	ListenUnix   string  `mapstructure:"listen_unix"`
	SocketMode   *uint32 `mapstructure:"socket_mode"`
	Accept       bool    `mapstructure:"accept"`
	ConfigSource string  `mapstructure:"config_source"`
	FdEnvVar     string  `mapstructure:"fd_env_var"`
}

// HealthCheckSpec is the YAML shape of one process's health_check block;
// durations are authored in seconds.
type HealthCheckSpec struct {
	Type           string `mapstructure:"type"`
	IntervalSec    int64  `mapstructure:"interval_sec"`
	TimeoutSec     int64  `mapstructure:"timeout_sec"`
	Retries        int    `mapstructure:"retries"`
	StartPeriodSec int64  `mapstructure:"start_period_sec"`

	HTTPURL    string `mapstructure:"http_url"`
	HTTPMethod string `mapstructure:"http_method"`
	HTTPStatus int    `mapstructure:"http_status"`

	TCPAddr string `mapstructure:"tcp_addr"`

	ExecCommand string   `mapstructure:"exec_command"`
	ExecArgs    []string `mapstructure:"exec_args"`

	SystemdUnitName string `mapstructure:"systemd_unit_name"`
}

// Load reads path (if non-empty) plus DD_PROCMGR_-prefixed environment
// overrides into a Config. An empty path is legal: env vars and defaults
// still apply, for a daemon launched with no file at all.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("grpc_port", 0)
	v.SetDefault("cgroup_root", "/sys/fs/cgroup/pm-processes")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// ToDomain translates a YAML process spec into a validated process.Config,
// applying the same spec-mandated defaults process.DefaultConfig does for
// any field the YAML left at its zero value.
func (s ProcessSpec) ToDomain() (process.Config, error) {
	cfg := process.DefaultConfig(s.Command)
	cfg.Args = s.Args

	if s.ProcessType != "" {
		cfg.ProcessType = process.ProcessType(s.ProcessType)
	}
	if s.RestartPolicy != "" {
		cfg.RestartPolicy = process.RestartPolicy(s.RestartPolicy)
	}
	if s.RestartDelaySec > 0 {
		cfg.RestartDelaySec = s.RestartDelaySec
	}
	if s.RestartMaxDelaySec > 0 {
		cfg.RestartMaxDelaySec = s.RestartMaxDelaySec
	}
	if s.StartLimitBurst > 0 {
		cfg.StartLimitBurst = s.StartLimitBurst
	}
	if s.StartLimitIntervalSec > 0 {
		cfg.StartLimitIntervalSec = s.StartLimitIntervalSec
	}
	if s.RuntimeSuccessSec > 0 {
		cfg.RuntimeSuccessSec = s.RuntimeSuccessSec
	}

	cfg.Requires = s.Requires
	cfg.BindsTo = s.BindsTo
	cfg.Conflicts = s.Conflicts
	cfg.After = s.After
	cfg.Before = s.Before
	cfg.Wants = s.Wants

	cfg.WorkingDir = s.WorkingDir
	cfg.Env = s.Env
	cfg.EnvironmentFile = s.EnvironmentFile
	cfg.User = s.User
	cfg.Group = s.Group

	cfg.TimeoutStartSec = s.TimeoutStartSec
	if s.TimeoutStopSec > 0 {
		cfg.TimeoutStopSec = s.TimeoutStopSec
	}
	if s.KillSignal > 0 {
		cfg.KillSignal = s.KillSignal
	}
	if s.KillMode != "" {
		cfg.KillMode = process.KillMode(s.KillMode)
	}
	cfg.RuntimeDirectory = s.RuntimeDirectory

	if s.SocketActivation != nil {
		sa := s.SocketActivation
		cfg.SocketActivation = &process.SocketConfig{
			Name:         sa.Name,
			Service:      sa.Service,
			ListenStream: sa.ListenStream,
			ListenUnix:   sa.ListenUnix,
			SocketMode:   sa.SocketMode,
			Accept:       sa.Accept,
			ConfigSource: process.SocketConfigSource(sa.ConfigSource),
			FdEnvVar:     sa.FdEnvVar,
		}
	}
	if s.HealthCheck != nil {
		hc := s.HealthCheck
		cfg.HealthCheck = &process.HealthCheckConfig{
			Type:            process.HealthCheckType(hc.Type),
			Interval:        time.Duration(hc.IntervalSec) * time.Second,
			Timeout:         time.Duration(hc.TimeoutSec) * time.Second,
			Retries:         hc.Retries,
			StartPeriod:     time.Duration(hc.StartPeriodSec) * time.Second,
			HTTPURL:         hc.HTTPURL,
			HTTPMethod:      hc.HTTPMethod,
			HTTPStatus:      hc.HTTPStatus,
			TCPAddr:         hc.TCPAddr,
			ExecCommand:     hc.ExecCommand,
			ExecArgs:        hc.ExecArgs,
			SystemdUnitName: hc.SystemdUnitName,
		}
	}

	if err := cfg.Validate(); err != nil {
		return process.Config{}, fmt.Errorf("config: process %q: %w", s.Name, err)
	}
	return cfg, nil
}
