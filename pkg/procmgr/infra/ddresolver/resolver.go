// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package ddresolver resolves socket_activation.Manager's Datadog-sourced
// SocketConfig entries against datadog.yaml and the agent's DD_* environment
// variables, mirroring the Datadog Agent's own config precedence: explicit
// env var, then YAML, then a hardcoded default.
package ddresolver

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/DataDog/viper"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/socketactivation"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Resolver reads a datadog.yaml config file, lazily on first use, and
// combines it with environment variables to resolve APM, OTLP, and
// DogStatsD socket configs.
type Resolver struct {
	configPath string
	v          *viper.Viper
	loaded     bool
}

// New returns a resolver that looks for datadog.yaml at path. An empty path
// falls back to DD_CONFIG_FILE, then the platform default.
func New(path string) *Resolver {
	if path == "" {
		path = findConfigPath()
	}
	return &Resolver{configPath: path}
}

func findConfigPath() string {
	if p := os.Getenv("DD_CONFIG_FILE"); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "darwin":
		return "/opt/datadog-agent/etc/datadog.yaml"
	case "windows":
		return `C:\ProgramData\Datadog\datadog.yaml`
	default:
		return "/etc/datadog-agent/datadog.yaml"
	}
}

func (r *Resolver) ensureLoaded() {
	if r.loaded {
		return
	}
	r.loaded = true
	r.v = viper.New()
	r.v.SetConfigFile(r.configPath)
	r.v.SetConfigType("yaml")
	if err := r.v.ReadInConfig(); err != nil {
		log.Debugf("ddresolver: no datadog config at %s: %v", r.configPath, err)
		return
	}
	log.Infof("ddresolver: loaded datadog config from %s", r.configPath)
}

func (r *Resolver) getString(yamlKey string, envVars []string, def string) string {
	for _, e := range envVars {
		if v, ok := os.LookupEnv(e); ok {
			return v
		}
	}
	r.ensureLoaded()
	if r.v != nil && r.v.IsSet(yamlKey) {
		return r.v.GetString(yamlKey)
	}
	return def
}

func (r *Resolver) getInt(yamlKey string, envVars []string, def int) int {
	for _, e := range envVars {
		if v, ok := os.LookupEnv(e); ok {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	r.ensureLoaded()
	if r.v != nil && r.v.IsSet(yamlKey) {
		return r.v.GetInt(yamlKey)
	}
	return def
}

func (r *Resolver) getBool(yamlKey string, envVars []string, def bool) bool {
	for _, e := range envVars {
		if v, ok := os.LookupEnv(e); ok {
			switch strings.ToLower(v) {
			case "true", "1", "yes":
				return true
			default:
				return false
			}
		}
	}
	r.ensureLoaded()
	if r.v != nil && r.v.IsSet(yamlKey) {
		return r.v.GetBool(yamlKey)
	}
	return def
}

func (r *Resolver) apmBindHost() string {
	if r.getBool("apm_config.apm_non_local_traffic", []string{"DD_APM_NON_LOCAL_TRAFFIC"}, false) {
		return "0.0.0.0"
	}
	// 127.0.0.1 rather than "localhost": avoids dual-stack bind on hosts
	// where "localhost" resolves to both an IPv4 and IPv6 address.
	return r.getString("bind_host", []string{"DD_BIND_HOST"}, "127.0.0.1")
}

// Resolve implements socketactivation.Resolver.
func (r *Resolver) Resolve(cfg process.SocketConfig) ([]socketactivation.ResolvedSocketConfig, error) {
	switch cfg.ConfigSource {
	case process.ConfigDatadogAPM:
		return r.resolveAPM(cfg)
	case process.ConfigDatadogOTLP:
		return r.resolveOTLP(cfg)
	case process.ConfigDatadogDogstatsd:
		return r.resolveDogstatsd(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown datadog config source %q", socketactivation.ErrInvalidCommand, cfg.ConfigSource)
	}
}

func (r *Resolver) resolveAPM(cfg process.SocketConfig) ([]socketactivation.ResolvedSocketConfig, error) {
	if !r.getBool("apm_config.socket_activation.enabled", []string{"DD_APM_SOCKET_ACTIVATION_ENABLED"}, false) {
		return nil, fmt.Errorf("%w: apm socket activation is not enabled (DD_APM_SOCKET_ACTIVATION_ENABLED=false)", socketactivation.ErrInvalidCommand)
	}
	if !r.getBool("apm_config.enabled", []string{"DD_APM_ENABLED"}, true) {
		return nil, fmt.Errorf("%w: apm is not enabled (DD_APM_ENABLED=false)", socketactivation.ErrInvalidCommand)
	}

	out := socketactivation.ResolvedSocketConfig{
		Name:    cfg.Name,
		Service: cfg.Service,
		Accept:  cfg.Accept,
	}

	port := r.getInt("apm_config.receiver_port", []string{"DD_APM_RECEIVER_PORT", "DD_RECEIVER_PORT"}, 8126)
	if port > 0 {
		out.ListenStream = fmt.Sprintf("%s:%d", r.apmBindHost(), port)
		out.FdEnvVar = "DD_APM_NET_RECEIVER_FD"
	}

	socketDefault := ""
	if runtime.GOOS == "linux" {
		socketDefault = "/var/run/datadog/apm.socket"
	}
	socketPath := r.getString("apm_config.receiver_socket", []string{"DD_APM_RECEIVER_SOCKET"}, socketDefault)
	if socketPath != "" {
		out.ListenUnix = socketPath
	}

	if out.ListenStream == "" && out.ListenUnix == "" {
		return nil, fmt.Errorf("%w: no apm receivers configured (both tcp and unix disabled)", socketactivation.ErrInvalidCommand)
	}
	return []socketactivation.ResolvedSocketConfig{out}, nil
}

func (r *Resolver) resolveOTLP(cfg process.SocketConfig) ([]socketactivation.ResolvedSocketConfig, error) {
	if !r.getBool("otlp_config.traces.enabled", nil, true) {
		return nil, fmt.Errorf("%w: otlp traces are not enabled", socketactivation.ErrInvalidCommand)
	}
	port := r.getInt("otlp_config.traces.internal_port", nil, 5003)
	return []socketactivation.ResolvedSocketConfig{{
		Name:         cfg.Name,
		Service:      cfg.Service,
		Accept:       cfg.Accept,
		ListenStream: fmt.Sprintf("%s:%d", r.apmBindHost(), port),
		FdEnvVar:     "DD_OTLP_CONFIG_GRPC_FD",
	}}, nil
}

func (r *Resolver) resolveDogstatsd(cfg process.SocketConfig) ([]socketactivation.ResolvedSocketConfig, error) {
	out := socketactivation.ResolvedSocketConfig{
		Name:    cfg.Name,
		Service: cfg.Service,
		Accept:  cfg.Accept,
	}

	port := r.getInt("dogstatsd_port", []string{"DD_DOGSTATSD_PORT"}, 8125)
	if port > 0 {
		out.ListenStream = fmt.Sprintf("0.0.0.0:%d", port)
		out.FdEnvVar = "DD_DOGSTATSD_FD"
	}

	socketPath := r.getString("dogstatsd_socket", []string{"DD_DOGSTATSD_SOCKET"}, "/var/run/datadog/dsd.socket")
	if socketPath != "" {
		out.ListenUnix = socketPath
	}
	return []socketactivation.ResolvedSocketConfig{out}, nil
}
