// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package healthprobe implements the HTTP/TCP/Exec probe drivers behind
// ports.HealthProbe.
package healthprobe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"

	"github.com/godbus/dbus/v5"

	gopsutilprocess "github.com/DataDog/gopsutil/process"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// Driver is the default ports.HealthProbe implementation.
type Driver struct {
	Client *http.Client
}

func New() *Driver {
	return &Driver{Client: http.DefaultClient}
}

func (d *Driver) Probe(ctx context.Context, cfg process.HealthCheckConfig) error {
	switch cfg.Type {
	case process.HealthHTTP:
		return d.probeHTTP(ctx, cfg)
	case process.HealthTCP:
		return d.probeTCP(ctx, cfg)
	case process.HealthExec:
		return d.probeExec(ctx, cfg)
	case process.HealthSystemdUnit:
		return d.probeSystemdUnit(cfg)
	case process.HealthProcess:
		return d.probeProcess(cfg)
	default:
		return fmt.Errorf("healthprobe: unknown probe type %q", cfg.Type)
	}
}

func (d *Driver) probeHTTP(ctx context.Context, cfg process.HealthCheckConfig) error {
	method := cfg.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, cfg.HTTPURL, nil)
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	expected := cfg.HTTPStatus
	if expected == 0 {
		expected = http.StatusOK
	}
	if resp.StatusCode != expected {
		return fmt.Errorf("healthprobe: http status %d, want %d", resp.StatusCode, expected)
	}
	return nil
}

func (d *Driver) probeTCP(ctx context.Context, cfg process.HealthCheckConfig) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", cfg.TCPAddr)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (d *Driver) probeExec(ctx context.Context, cfg process.HealthCheckConfig) error {
	cmd := exec.CommandContext(ctx, cfg.ExecCommand, cfg.ExecArgs...)
	return cmd.Run()
}

const (
	systemdBusName       = "org.freedesktop.systemd1"
	systemdObjectPath    = "/org/freedesktop/systemd1"
	systemdManagerIface  = "org.freedesktop.systemd1.Manager"
	systemdUnitIface     = "org.freedesktop.systemd1.Unit"
	systemdActiveStateOK = "active"
)

// probeSystemdUnit queries a systemd-managed peer's ActiveState over the
// system bus, passing iff the unit is "active". This lets a health check
// watch a unit the process manager does not itself supervise (e.g. a
// system service this process depends on).
func (d *Driver) probeSystemdUnit(cfg process.HealthCheckConfig) error {
	if cfg.SystemdUnitName == "" {
		return fmt.Errorf("healthprobe: systemd-unit check has no unit name configured")
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("healthprobe: connect to system bus: %w", err)
	}
	defer conn.Close()

	manager := conn.Object(systemdBusName, dbus.ObjectPath(systemdObjectPath))
	var unitPath dbus.ObjectPath
	if err := manager.Call(systemdManagerIface+".GetUnit", 0, cfg.SystemdUnitName).Store(&unitPath); err != nil {
		return fmt.Errorf("healthprobe: GetUnit %s: %w", cfg.SystemdUnitName, err)
	}

	unit := conn.Object(systemdBusName, unitPath)
	variant, err := unit.GetProperty(systemdUnitIface + ".ActiveState")
	if err != nil {
		return fmt.Errorf("healthprobe: ActiveState %s: %w", cfg.SystemdUnitName, err)
	}
	state, ok := variant.Value().(string)
	if !ok || state != systemdActiveStateOK {
		return fmt.Errorf("healthprobe: unit %s is %v, want %q", cfg.SystemdUnitName, variant.Value(), systemdActiveStateOK)
	}
	return nil
}

// probeProcess is a bare pid-liveness check via gopsutil for HealthProcess
// checks: it passes iff cfg.PID names a running process.
func (d *Driver) probeProcess(cfg process.HealthCheckConfig) error {
	if cfg.PID <= 0 {
		return fmt.Errorf("healthprobe: process check has no pid to probe")
	}
	proc, err := gopsutilprocess.NewProcess(int32(cfg.PID))
	if err != nil {
		return fmt.Errorf("healthprobe: pid %d: %w", cfg.PID, err)
	}
	running, err := proc.IsRunning()
	if err != nil {
		return fmt.Errorf("healthprobe: pid %d: %w", cfg.PID, err)
	}
	if !running {
		return fmt.Errorf("healthprobe: pid %d is not running", cfg.PID)
	}
	return nil
}
