// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package repository provides the reference in-memory implementation of
// ports.Repository used by the daemon's default wiring and by every test in
// this module. A persistent implementation is an external collaborator and
// not part of the core.
package repository

import (
	"sync"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// Memory is a thread-safe, in-memory ports.Repository. Writes are
// serialised per process id via a single map-wide mutex, which delivers a
// strict per-id ordering guarantee without the complexity of per-key locks:
// contention is negligible at process-manager scale (tens to low hundreds
// of entities).
type Memory struct {
	mu     sync.RWMutex
	byID   map[process.ID]*process.Process
	byName map[string]process.ID
}

func New() *Memory {
	return &Memory{
		byID:   make(map[process.ID]*process.Process),
		byName: make(map[string]process.ID),
	}
}

func (m *Memory) FindByID(id process.ID) (*process.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, ports.ErrProcessNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) FindByName(name string) (*process.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[name]
	if !ok {
		return nil, ports.ErrProcessNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *Memory) FindAll() ([]*process.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*process.Process, 0, len(m.byID))
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Save(p *process.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	m.byName[p.Name] = p.ID
	return nil
}

func (m *Memory) Delete(id process.ID, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return ports.ErrProcessNotFound
	}
	if !force && (p.State == process.Running || p.State == process.Starting) {
		return process.ErrDeleteWhileRunning
	}
	delete(m.byID, id)
	delete(m.byName, p.Name)
	return nil
}
