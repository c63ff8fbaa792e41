// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package health implements the periodic HTTP/TCP/Exec probe contract. The
// monitor only mutates health_status, health_check_failures and
// last_health_check on the entity; it never kills a process itself.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// Monitor runs one background probe loop per registered process.
type Monitor struct {
	repo  ports.Repository
	probe ports.HealthProbe

	mu      sync.Mutex
	cancels map[process.ID]context.CancelFunc
}

func NewMonitor(repo ports.Repository, probe ports.HealthProbe) *Monitor {
	return &Monitor{
		repo:    repo,
		probe:   probe,
		cancels: make(map[process.ID]context.CancelFunc),
	}
}

// Start launches (or restarts) the probe loop for id. Any previous loop for
// the same id is cancelled first, so a respawn always gets a fresh loop.
func (m *Monitor) Start(parent context.Context, id process.ID, cfg process.HealthCheckConfig) {
	m.Stop(id)

	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.cancels[id] = cancel
	m.mu.Unlock()

	go m.loop(ctx, id, cfg)
}

// Stop cancels id's probe loop, if any.
func (m *Monitor) Stop(id process.ID) {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	if ok {
		delete(m.cancels, id)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func (m *Monitor) loop(ctx context.Context, id process.ID, cfg process.HealthCheckConfig) {
	if cfg.StartPeriod > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.StartPeriod):
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.runOnce(ctx, id, cfg)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context, id process.ID, cfg process.HealthCheckConfig) {
	if cfg.Type == process.HealthProcess {
		if current, err := m.repo.FindByID(id); err == nil && current.PID != nil {
			cfg.PID = *current.PID
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.probe.Probe(probeCtx, cfg)

	p, ferr := m.repo.FindByID(id)
	if ferr != nil {
		return
	}
	now := time.Now()
	p.LastHealthCheck = &now

	if err == nil {
		p.HealthStatus = process.HealthHealthy
		p.HealthCheckFailures = 0
	} else {
		p.HealthCheckFailures++
		if p.HealthCheckFailures >= int64(cfg.Retries) {
			p.HealthStatus = process.HealthUnhealthy
		}
	}

	if saveErr := m.repo.Save(p); saveErr != nil {
		log.Errorf("health: save %s: %v", p.Name, saveErr)
	}
}
