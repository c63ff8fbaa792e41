// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

// Package socketactivation pre-creates listeners that activate their
// target process on first accept (single-instance mode) or spawn one fresh
// instance per connection (accept mode).
package socketactivation

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/ports"
	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
	"github.com/DataDog/agent-process-manager/pkg/util/log"
)

// ErrInvalidCommand is raised for malformed listen addresses or a socket
// kind unsupported on the current platform.
var ErrInvalidCommand = errors.New("socketactivation: invalid command")

// ErrPlatformNotSupported is raised on platforms with no socket-activation
// backing at all.
var ErrPlatformNotSupported = errors.New("socketactivation: platform not supported")

// Resolver turns a Datadog-sourced SocketConfig into one or more concrete
// listen parameters. Explicit configs need none of this and pass straight
// through.
type Resolver interface {
	Resolve(cfg process.SocketConfig) ([]ResolvedSocketConfig, error)
}

// ResolvedSocketConfig is the output of config resolution: a concrete
// listen target plus the env var name(s) the executor should expose to the
// child.
type ResolvedSocketConfig struct {
	Name         string
	Service      string
	ListenStream string
	ListenUnix   string
	SocketMode   *uint32
	Accept       bool
	FdEnvVar     string
}

type boundSocket struct {
	name    string
	service string
	accept  bool
	fdEnv   string

	listener io.Closer // kept alive for the manager's lifetime; see openListener
	fd       uintptr
	stopCh   chan struct{}
}

// Manager owns every pre-created listener and the single acceptor
// goroutine/thread behind each one.
type Manager struct {
	resolver Resolver

	mu      sync.Mutex
	sockets map[string]*boundSocket
	events  chan ports.SocketActivationEvent
}

func New(resolver Resolver) *Manager {
	return &Manager{
		resolver: resolver,
		sockets:  make(map[string]*boundSocket),
		events:   make(chan ports.SocketActivationEvent, 64),
	}
}

// Events is the MPSC channel consumed by the wrapper around the supervisor.
func (m *Manager) Events() <-chan ports.SocketActivationEvent {
	return m.events
}

// Create pre-creates a blocking listener for cfg and starts its acceptor.
func (m *Manager) Create(cfg process.SocketConfig) error {
	resolved, err := m.resolve(cfg)
	if err != nil {
		return err
	}
	for _, rc := range resolved {
		if err := m.createOne(rc); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) resolve(cfg process.SocketConfig) ([]ResolvedSocketConfig, error) {
	if cfg.ConfigSource == "" || cfg.ConfigSource == process.ConfigExplicit {
		return []ResolvedSocketConfig{{
			Name:         cfg.Name,
			Service:      cfg.Service,
			ListenStream: cfg.ListenStream,
			ListenUnix:   cfg.ListenUnix,
			SocketMode:   cfg.SocketMode,
			Accept:       cfg.Accept,
			FdEnvVar:     cfg.FdEnvVar,
		}}, nil
	}
	if m.resolver == nil {
		return nil, fmt.Errorf("%w: datadog-sourced socket config with no resolver configured", ErrInvalidCommand)
	}
	return m.resolver.Resolve(cfg)
}

func (m *Manager) createOne(rc ResolvedSocketConfig) error {
	listener, fd, err := openListener(rc)
	if err != nil {
		return err
	}

	bs := &boundSocket{
		name:     rc.Name,
		service:  rc.Service,
		accept:   rc.Accept,
		fdEnv:    rc.FdEnvVar,
		listener: listener,
		fd:       fd,
		stopCh:   make(chan struct{}),
	}

	m.mu.Lock()
	m.sockets[rc.Name] = bs
	m.mu.Unlock()

	if l, ok := listener.(net.Listener); ok {
		if rc.Accept {
			go m.acceptLoop(bs, l)
		} else {
			go m.singleInstanceLoop(bs, l)
		}
	}
	return nil
}

// singleInstanceLoop implements accept=false: wait for the listener to
// become readable, emit exactly one event, sleep 100ms to let the service
// come up, then resume waiting.
func (m *Manager) singleInstanceLoop(bs *boundSocket, l net.Listener) {
	for {
		conn, err := l.Accept()
		select {
		case <-bs.stopCh:
			return
		default:
		}
		if err != nil {
			log.Warnf("socketactivation: accept on %s: %v", bs.name, err)
			continue
		}
		// Single-instance mode hands the listener itself to the child, not
		// this particular connection; close it here so the client's request
		// is served once the activated instance re-accepts.
		_ = conn.Close()

		select {
		case m.events <- ports.SocketActivationEvent{SocketName: bs.name, ServiceName: bs.service, FD: bs.fd, Accept: false}:
		case <-bs.stopCh:
			return
		}

		time.Sleep(100 * time.Millisecond)
	}
}

// acceptLoop implements accept=true: spawn one instance per connection,
// forgetting the accepted stream so its FD stays live for the child.
func (m *Manager) acceptLoop(bs *boundSocket, l net.Listener) {
	for {
		conn, err := l.Accept()
		select {
		case <-bs.stopCh:
			return
		default:
		}
		if err != nil {
			log.Warnf("socketactivation: accept on %s: %v", bs.name, err)
			continue
		}
		fd := connFD(conn)
		select {
		case m.events <- ports.SocketActivationEvent{SocketName: bs.name, ServiceName: bs.service, FD: fd, Accept: true}:
		case <-bs.stopCh:
			return
		}
	}
}

// Close signals every acceptor to stop. An acceptor blocked in Accept
// notices the signal only after its next connection arrives. Listeners are
// not closed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bs := range m.sockets {
		close(bs.stopCh)
	}
}

// connFD extracts the raw descriptor behind an accepted connection so it
// can be exposed to the activated child in place of the listening socket
// (accept=true mode).
func connFD(conn net.Conn) uintptr {
	type fileConn interface {
		File() (*os.File, error)
	}
	fc, ok := conn.(fileConn)
	if !ok {
		return 0
	}
	f, err := fc.File()
	if err != nil {
		return 0
	}
	return f.Fd()
}

func sanitizeUnixPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty unix socket path", ErrInvalidCommand)
	}
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("%w: unlink stale socket: %v", ErrInvalidCommand, err)
		}
	}
	return nil
}
