// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

const sampleYAML = `
log_level: debug
grpc_port: 5005
processes:
  - name: api
    command: /usr/bin/api-server
    args: ["--port", "8080"]
    restart_policy: always
    restart_delay_sec: 2
    binds_to: ["db"]
`

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procmgr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5005, cfg.GRPCPort)
	require.Len(t, cfg.Processes, 1)
	assert.Equal(t, "api", cfg.Processes[0].Name)
	assert.Equal(t, []string{"db"}, cfg.Processes[0].BindsTo)
}

func TestLoadWithNoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/sys/fs/cgroup/pm-processes", cfg.CgroupRoot)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DD_PROCMGR_LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestProcessSpecToDomainAppliesDefaults(t *testing.T) {
	spec := ProcessSpec{Name: "api", Command: "/bin/api"}
	domainCfg, err := spec.ToDomain()
	require.NoError(t, err)
	assert.Equal(t, process.RestartNever, domainCfg.RestartPolicy)
	assert.Equal(t, int64(1), domainCfg.RestartDelaySec)
	assert.Equal(t, int64(90), domainCfg.TimeoutStopSec)
}

func TestProcessSpecToDomainRejectsEmptyCommand(t *testing.T) {
	spec := ProcessSpec{Name: "broken"}
	_, err := spec.ToDomain()
	assert.ErrorIs(t, err, process.ErrInvalidCommand)
}

func TestProcessSpecToDomainRejectsAbsoluteRuntimeDir(t *testing.T) {
	spec := ProcessSpec{Name: "api", Command: "/bin/api", RuntimeDirectory: []string{"/etc/evil"}}
	_, err := spec.ToDomain()
	assert.ErrorIs(t, err, process.ErrInvalidConfiguration)
}

func TestProcessSpecToDomainMapsSocketActivationAndHealthCheck(t *testing.T) {
	spec := ProcessSpec{
		Name:    "apm",
		Command: "/bin/apm",
		SocketActivation: &SocketActivationSpec{
			Name:         "apm-receiver",
			Service:      "apm",
			ListenStream: "127.0.0.1:8126",
			ConfigSource: "datadog-apm",
			FdEnvVar:     "DD_APM_NET_RECEIVER_FD",
		},
		HealthCheck: &HealthCheckSpec{
			Type:        "http",
			IntervalSec: 10,
			TimeoutSec:  2,
			Retries:     3,
			HTTPURL:     "http://127.0.0.1:8126/healthz",
		},
	}
	domainCfg, err := spec.ToDomain()
	require.NoError(t, err)

	require.NotNil(t, domainCfg.SocketActivation)
	assert.Equal(t, "apm-receiver", domainCfg.SocketActivation.Name)
	assert.Equal(t, process.ConfigDatadogAPM, domainCfg.SocketActivation.ConfigSource)

	require.NotNil(t, domainCfg.HealthCheck)
	assert.Equal(t, process.HealthHTTP, domainCfg.HealthCheck.Type)
	assert.Equal(t, 10*time.Second, domainCfg.HealthCheck.Interval)
	assert.Equal(t, 3, domainCfg.HealthCheck.Retries)
}
